package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medrevise/medrevise/internal/auth"
	"github.com/medrevise/medrevise/internal/rbac"
)

type loginResponse struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

func LoginHandler(users auth.UserStore, svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		u, err := users.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			fail(w, err)
			return
		}
		tok, err := svc.Issue(u.ID, u.Role)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(loginResponse{Token: tok, User: u})
	}
}

// RegisterHandler opens self-service accounts; they always start as students.
func RegisterHandler(users auth.UserStore, svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		u, err := users.Register(r.Context(), req.Username, req.Password, rbac.RoleStudent)
		if err != nil {
			fail(w, err)
			return
		}
		tok, err := svc.Issue(u.ID, u.Role)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, 201, loginResponse{Token: tok, User: u})
	}
}

func MeHandler(users auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, _ := auth.SubjectFromContext(r.Context())
		u, err := users.GetByID(r.Context(), sub)
		if err != nil {
			fail(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(u)
	}
}

func ChangePasswordHandler(users auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, _ := auth.SubjectFromContext(r.Context())
		var req struct {
			OldPassword string `json:"old_password"`
			NewPassword string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := users.ChangePassword(r.Context(), sub, req.OldPassword, req.NewPassword); err != nil {
			if errors.Is(err, auth.ErrBadCredentials) {
				http.Error(w, "incorrect old password", 403)
				return
			}
			fail(w, err)
			return
		}
		w.WriteHeader(204)
	}
}

func ListUsersHandler(users auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := users.List(r.Context())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if role := r.URL.Query().Get("role"); role != "" {
			kept := all[:0]
			for _, u := range all {
				if u.Role == role {
					kept = append(kept, u)
				}
			}
			all = kept
		}
		if all == nil {
			all = []auth.User{}
		}
		_ = json.NewEncoder(w).Encode(all)
	}
}

func SetRoleHandler(users auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "userID")
		var req struct {
			Role string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if !rbac.ValidRole(req.Role) {
			http.Error(w, "unknown role", 400)
			return
		}
		if err := users.SetRole(r.Context(), id, req.Role); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(204)
	}
}

// BulkUsersHandler loads a roster from a JSON array or an uploaded CSV/JSON
// file, whichever the request carries.
func BulkUsersHandler(users auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []auth.BulkUser
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", 400)
				return
			}
			defer f.Close()
			buf := make([]byte, 1)
			if _, err := f.Read(buf); err != nil {
				http.Error(w, "empty file", 400)
				return
			}
			if s, ok := f.(io.Seeker); ok {
				_, _ = s.Seek(0, io.SeekStart)
			}
			if buf[0] == '[' || buf[0] == '{' {
				if err := json.NewDecoder(f).Decode(&rows); err != nil {
					http.Error(w, "bad json", 400)
					return
				}
			} else {
				parsed, err := parseRosterCSV(f)
				if err != nil {
					http.Error(w, "bad csv: "+err.Error(), 400)
					return
				}
				rows = parsed
			}
		} else {
			if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
				http.Error(w, "expected a JSON array or a multipart file", 400)
				return
			}
		}
		if len(rows) == 0 {
			_ = json.NewEncoder(w).Encode(map[string]int{"inserted": 0, "updated": 0})
			return
		}
		ins, upd, err := users.BulkUpsert(r.Context(), rows)
		if err != nil {
			fail(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"inserted": ins, "updated": upd})
	}
}

// parseRosterCSV reads id,username,role[,password] with a header line.
func parseRosterCSV(r io.Reader) ([]auth.BulkUser, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"id", "username"} {
		if _, ok := idx[col]; !ok {
			return nil, errors.New("missing column: " + col)
		}
	}
	var rows []auth.BulkUser
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := auth.BulkUser{
			ID:       rec[idx["id"]],
			Username: rec[idx["username"]],
		}
		if i, ok := idx["role"]; ok {
			row.Role = strings.ToLower(strings.TrimSpace(rec[i]))
		}
		if i, ok := idx["password"]; ok {
			row.Password = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
