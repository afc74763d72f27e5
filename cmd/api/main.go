package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	api "github.com/medrevise/medrevise/internal/api/http"
	"github.com/medrevise/medrevise/internal/auth"
	"github.com/medrevise/medrevise/internal/config"
	"github.com/medrevise/medrevise/internal/db"
	"github.com/medrevise/medrevise/internal/debounce"
	"github.com/medrevise/medrevise/internal/events"
	"github.com/medrevise/medrevise/internal/logger"
	"github.com/medrevise/medrevise/internal/maintenance"
	"github.com/medrevise/medrevise/internal/quiz"
	"github.com/medrevise/medrevise/internal/rbac"
	"github.com/medrevise/medrevise/internal/scoring"
	"github.com/medrevise/medrevise/internal/storage"
	"github.com/medrevise/medrevise/internal/study"
	"github.com/medrevise/medrevise/internal/ws"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger.Init(cfg.LogLevel)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	content := quiz.NewSQLContentStore(dbh, cfg.DBDriver)
	states := study.NewSQLStateStore(dbh, cfg.DBDriver)
	pins := study.NewSQLPinStore(dbh, cfg.DBDriver)
	comments := study.NewSQLCommentStore(dbh, cfg.DBDriver)
	activity := study.NewSQLActivityLog(dbh)

	var stats study.StatsStore = study.NewSQLStatsStore(dbh, cfg.DBDriver)
	if cfg.StatsBackend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		stats = study.NewRedisStatsStore(rdb)
		logger.Infof("option stats on redis at %s", cfg.RedisAddr)
	}

	// --- Auth ---
	users := auth.NewSQLUserStore(dbh)
	authSvc := auth.NewService([]byte(cfg.JWTSecret), cfg.TokenTTL)
	seedAdmin(ctx, users, cfg)

	// --- Engine plumbing ---
	bus := events.NewBus()
	hub := ws.NewHub()
	go hub.Run(context.Background(), bus)

	registry := quiz.NewRegistry()
	saves := debounce.New(cfg.SaveDebounce)
	grader := scoring.New()
	caseCfg := quiz.DefaultCaseConfig()

	blobs, err := storage.NewFSStore(cfg.AssetsDir, cfg.MaxUploadBytes)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Maintenance ---
	sched := maintenance.New()
	if err := sched.Add(cfg.PruneSchedule, maintenance.SessionPruner(registry, cfg.SessionIdleTTL)); err != nil {
		log.Fatalf("session pruner: %v", err)
	}
	if err := sched.Add("@daily", maintenance.ActivityPruner(activity, cfg.ActivityRetention)); err != nil {
		log.Fatalf("activity pruner: %v", err)
	}
	sched.Start()

	// --- Router ---
	r := api.NewRouter(api.Deps{
		Auth:    authSvc,
		Users:   users,
		Content: content,
		Sessions: api.SessionEnv{
			Registry: registry,
			Content:  content,
			Pins:     pins,
			States:   states,
			Stats:    stats,
			Activity: activity,
			Bus:      bus,
			Grader:   grader,
			CaseCfg:  caseCfg,
		},
		Study: api.StudyEnv{
			States:   states,
			Pins:     pins,
			Stats:    stats,
			Activity: activity,
			Registry: registry,
			Saves:    saves,
			Bus:      bus,
		},
		Comments:       api.CommentsEnv{Comments: comments, Bus: bus},
		Assets:         blobs,
		Hub:            hub,
		AllowedOrigins: cfg.AllowedOrigins,
		StrictRoles:    cfg.StrictRoles,
	})

	logger.Infof("listening on %s", cfg.HTTPAddr)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// seedAdmin makes sure a usable admin account exists on first boot. An
// existing account is never touched.
func seedAdmin(ctx context.Context, users auth.UserStore, cfg config.Config) {
	if cfg.AdminPassword == "" {
		return
	}
	_, err := users.Register(ctx, cfg.AdminUser, cfg.AdminPassword, rbac.RoleAdmin)
	if errors.Is(err, auth.ErrUserExists) {
		return
	}
	if err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	logger.Infof("seeded admin user %q", cfg.AdminUser)
}
