package quiz

import (
	"context"
	"errors"
	"testing"

	"github.com/medrevise/medrevise/internal/db"
)

func openStores(t *testing.T) map[string]ContentStore {
	t.Helper()
	ctx := context.Background()
	sqlDB, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return map[string]ContentStore{
		"memory": NewMemoryContentStore(),
		"sqlite": NewSQLContentStore(sqlDB, "sqlite"),
	}
}

func seedLecture(t *testing.T, s ContentStore, id string) {
	t.Helper()
	if err := s.PutLecture(context.Background(), Lecture{ID: id, Title: "Cardiologie", Subject: "DFGSM3", Position: 1}); err != nil {
		t.Fatalf("put lecture: %v", err)
	}
}

func TestContentStoreLectures(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedLecture(t, s, "lec1")
			if err := s.PutLecture(ctx, Lecture{ID: "lec2", Title: "Pneumologie", Position: 2}); err != nil {
				t.Fatalf("put: %v", err)
			}

			lec, err := s.GetLecture(ctx, "lec1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if lec.Title != "Cardiologie" || lec.Subject != "DFGSM3" {
				t.Fatalf("lecture = %+v", lec)
			}

			// Upsert keeps the id, replaces the rest.
			if err := s.PutLecture(ctx, Lecture{ID: "lec1", Title: "Cardiologie II", Position: 1}); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			lec, _ = s.GetLecture(ctx, "lec1")
			if lec.Title != "Cardiologie II" {
				t.Fatalf("title after upsert = %q", lec.Title)
			}

			all, err := s.ListLectures(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(all) != 2 || all[0].ID != "lec1" || all[1].ID != "lec2" {
				t.Fatalf("list = %+v", all)
			}

			if err := s.DeleteLecture(ctx, "lec2"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.GetLecture(ctx, "lec2"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
			if err := s.DeleteLecture(ctx, "lec2"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("double delete err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestContentStoreQuestions(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedLecture(t, s, "lec1")

			q := Question{
				ID:        "q1",
				LectureID: "lec1",
				Position:  1,
				Type:      TypeMCQ,
				Text:      "Signes de l'insuffisance cardiaque ?",
				Options: []Option{
					{ID: "a", Text: "Dyspnée", Explanation: "majeur"},
					{ID: "b", Text: "Fièvre"},
				},
				CorrectIDs:  []string{"a"},
				Explanation: "Cours p. 12",
				MediaURL:    "/assets/ecg.png",
			}
			if err := s.PutQuestion(ctx, q); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, err := s.GetQuestion(ctx, "q1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Text != q.Text || len(got.Options) != 2 || got.Options[0].Explanation != "majeur" {
				t.Fatalf("question = %+v", got)
			}
			if len(got.CorrectIDs) != 1 || got.CorrectIDs[0] != "a" {
				t.Fatalf("correct = %v", got.CorrectIDs)
			}

			if err := s.SetQuestionHidden(ctx, "q1", true); err != nil {
				t.Fatalf("hide: %v", err)
			}
			got, _ = s.GetQuestion(ctx, "q1")
			if !got.Hidden {
				t.Fatal("question should be hidden")
			}

			if err := s.PutQuestion(ctx, Question{ID: "bad", LectureID: "lec1", Type: "essay", Text: "x"}); err == nil {
				t.Fatal("unknown type should be rejected")
			}
			if err := s.DeleteQuestion(ctx, "q1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.GetQuestion(ctx, "q1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func importFixture() []Item {
	return []Item{
		QuestionItem(Question{ID: "q1", Type: TypeMCQ, Text: "standalone 1",
			Options: []Option{{ID: "a"}, {ID: "b"}}, CorrectIDs: []string{"a"}}),
		CaseItem(ClinicalCase{Number: 1, Text: "vignette", Questions: []Question{
			{ID: "c1q1", Type: TypeClinicMCQ, Options: []Option{{ID: "a"}}, CorrectIDs: []string{"a"}},
			{ID: "c1q2", Type: TypeClinicCROQ, Text: "justifiez"},
		}}),
		QuestionItem(Question{ID: "q2", Type: TypeQROC, Text: "standalone 2"}),
	}
}

func TestContentStoreImportAndItems(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedLecture(t, s, "lec1")
			if err := s.ImportItems(ctx, "lec1", importFixture()); err != nil {
				t.Fatalf("import: %v", err)
			}

			items, err := s.LectureItems(ctx, "lec1")
			if err != nil {
				t.Fatalf("items: %v", err)
			}
			if len(items) != 3 {
				t.Fatalf("items = %d, want 3", len(items))
			}
			if items[0].Kind != KindQuestion || items[0].Question.ID != "q1" {
				t.Fatalf("item 0 = %+v", items[0])
			}
			if items[1].Kind != KindCase || items[1].Case.Number != 1 || items[1].Case.Text != "vignette" {
				t.Fatalf("item 1 = %+v", items[1])
			}
			if ids := items[1].QuestionIDs(); len(ids) != 2 || ids[0] != "c1q1" || ids[1] != "c1q2" {
				t.Fatalf("case ids = %v", ids)
			}
			if items[2].Question.ID != "q2" {
				t.Fatalf("item 2 = %+v", items[2])
			}

			// Re-import replaces everything.
			if err := s.ImportItems(ctx, "lec1", []Item{
				QuestionItem(Question{ID: "q9", Type: TypeQROC, Text: "only one"}),
			}); err != nil {
				t.Fatalf("reimport: %v", err)
			}
			items, _ = s.LectureItems(ctx, "lec1")
			if len(items) != 1 || items[0].Question.ID != "q9" {
				t.Fatalf("items after reimport = %+v", items)
			}
			if _, err := s.GetQuestion(ctx, "q1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("old question err = %v, want ErrNotFound", err)
			}

			if _, err := s.LectureItems(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("unknown lecture err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestContentStoreCaseText(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedLecture(t, s, "lec1")
			if err := s.ImportItems(ctx, "lec1", importFixture()); err != nil {
				t.Fatalf("import: %v", err)
			}
			if err := s.PutCaseText(ctx, "lec1", 1, "vignette corrigée"); err != nil {
				t.Fatalf("put case text: %v", err)
			}
			items, _ := s.LectureItems(ctx, "lec1")
			if items[1].Case.Text != "vignette corrigée" {
				t.Fatalf("case text = %q", items[1].Case.Text)
			}
		})
	}
}
