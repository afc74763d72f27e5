package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/medrevise/medrevise/internal/config"
	"github.com/medrevise/medrevise/internal/db"
	"github.com/medrevise/medrevise/internal/quiz"
)

// bankctl loads and dumps lecture banks straight against the database, the
// offline counterpart of the import and export endpoints.
func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	importFile := flag.String("import", "", "bank JSON file to load")
	exportID := flag.String("export", "", "lecture id to dump as bank JSON on stdout")
	list := flag.Bool("list", false, "list lectures")
	flag.Parse()

	cfg := config.FromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := quiz.NewSQLContentStore(dbh, cfg.DBDriver)

	switch {
	case *importFile != "":
		err = runImport(ctx, store, *importFile)
	case *exportID != "":
		err = runExport(ctx, store, *exportID)
	case *list:
		err = runList(ctx, store)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("bankctl: %v", err)
	}
}

func runImport(ctx context.Context, store *quiz.SQLContentStore, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var bank quiz.Lecture
	if err := json.Unmarshal(raw, &bank); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if bank.ID == "" {
		return fmt.Errorf("%s: bank file must carry a lecture id", path)
	}
	if bank.Title != "" {
		if err := store.PutLecture(ctx, bank); err != nil {
			return err
		}
	}
	if err := store.ImportItems(ctx, bank.ID, bank.Items); err != nil {
		return err
	}
	fmt.Printf("imported %s: %d questions\n", bank.ID, bank.QuestionCount())
	return nil
}

func runExport(ctx context.Context, store *quiz.SQLContentStore, lectureID string) error {
	lec, err := store.GetLecture(ctx, lectureID)
	if err != nil {
		return err
	}
	items, err := store.LectureItems(ctx, lectureID)
	if err != nil {
		return err
	}
	lec.Items = items
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(lec)
}

func runList(ctx context.Context, store *quiz.SQLContentStore) error {
	lecs, err := store.ListLectures(ctx)
	if err != nil {
		return err
	}
	for _, l := range lecs {
		fmt.Printf("%s\t%s\t%s\n", l.ID, l.Title, l.Subject)
	}
	return nil
}
