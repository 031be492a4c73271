package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DekelUsach/Loomi-backend/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "loomi.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreLibraryAndUserTexts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	lib := &models.LibraryText{Title: "El zorro", OwnerID: "u1", SourceHash: "abc"}
	if err := s.CreateLibraryText(ctx, lib); err != nil {
		t.Fatal(err)
	}
	if lib.ID == 0 || lib.CreatedAt.IsZero() {
		t.Fatalf("library text not populated: %+v", lib)
	}

	ps := models.NewParagraphs([]string{"Uno.", "Dos.", "Tres."}, []string{"/images/a.png"})
	if err := s.InsertLibraryParagraphs(ctx, lib.ID, ps); err != nil {
		t.Fatal(err)
	}
	for _, p := range ps {
		if p.ID == 0 || p.TextID != lib.ID {
			t.Errorf("paragraph not populated: %+v", p)
		}
	}

	ut := &models.UserText{OwnerID: "u1", Title: lib.Title, LibraryTextID: lib.ID}
	if err := s.CreateUserText(ctx, ut); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertUserParagraphs(ctx, ut.ID, models.NewParagraphs([]string{"Uno.", "Dos.", "Tres."}, nil)); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListLibraryParagraphs(ctx, lib.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Content != "Uno." || got[0].ImageURL != "/images/a.png" || got[2].Position != 3 {
		t.Errorf("library paragraphs = %+v", got)
	}
	up, err := s.ListUserParagraphs(ctx, ut.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(up) != 3 || up[1].Content != "Dos." || up[1].ImageURL != "" {
		t.Errorf("user paragraphs = %+v", up)
	}

	gotUT, err := s.GetUserText(ctx, ut.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotUT.LibraryTextID != lib.ID || gotUT.OwnerID != "u1" {
		t.Errorf("user text = %+v", gotUT)
	}
	list, err := s.ListUserTexts(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("ListUserTexts(u1) = %d rows", len(list))
	}
	if list, _ := s.ListUserTexts(ctx, "u2"); len(list) != 0 {
		t.Errorf("ListUserTexts(u2) = %d rows", len(list))
	}

	c, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := models.Counts{LibraryTexts: 1, LibraryParagraphs: 3, UserTexts: 1, UserParagraphs: 3}
	if c != want {
		t.Errorf("Counts() = %+v, want %+v", c, want)
	}
}

func TestSQLiteStoreLookups(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.GetLibraryText(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLibraryText missing: err = %v", err)
	}
	if _, err := s.GetUserText(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserText missing: err = %v", err)
	}
	if _, err := s.FindLibraryTextBySource(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindLibraryTextBySource missing: err = %v", err)
	}

	a := &models.LibraryText{Title: "A", SourcePath: "/lib/a.pdf", SourceHash: "h1"}
	b := &models.LibraryText{Title: "B"}
	for _, lt := range []*models.LibraryText{a, b} {
		if err := s.CreateLibraryText(ctx, lt); err != nil {
			t.Fatal(err)
		}
	}
	found, err := s.FindLibraryTextBySource(ctx, "h1")
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != a.ID || found.SourcePath != "/lib/a.pdf" {
		t.Errorf("found = %+v", found)
	}
	got, err := s.GetLibraryText(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "B" || got.SourceHash != "" {
		t.Errorf("got = %+v", got)
	}
	all, err := s.ListLibraryTexts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != b.ID {
		t.Errorf("ListLibraryTexts = %+v", all)
	}
}

func TestSQLiteStoreRejectsDuplicatePositions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	lib := &models.LibraryText{Title: "X"}
	if err := s.CreateLibraryText(ctx, lib); err != nil {
		t.Fatal(err)
	}
	ps := []models.Paragraph{{Position: 1, Content: "a"}, {Position: 1, Content: "b"}}
	if err := s.InsertLibraryParagraphs(ctx, lib.ID, ps); err == nil {
		t.Fatal("expected unique constraint error")
	}
	got, _ := s.ListLibraryParagraphs(ctx, lib.ID)
	if len(got) != 0 {
		t.Errorf("failed insert left %d rows", len(got))
	}
}

func TestSQLiteStoreForeignKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ut := &models.UserText{OwnerID: "u", Title: "t", LibraryTextID: 999}
	if err := s.CreateUserText(ctx, ut); err == nil {
		t.Error("expected foreign key violation")
	}
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)

func TestSQLiteStoreFindBySourceSkipsOwnedTexts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	owned := &models.LibraryText{Title: "Privado", OwnerID: "user-1", SourceHash: "h1"}
	if err := s.CreateLibraryText(ctx, owned); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindLibraryTextBySource(ctx, "h1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("owned text matched: err = %v", err)
	}

	shared := &models.LibraryText{Title: "Compartido", SourceHash: "h1"}
	if err := s.CreateLibraryText(ctx, shared); err != nil {
		t.Fatal(err)
	}
	found, err := s.FindLibraryTextBySource(ctx, "h1")
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != shared.ID {
		t.Errorf("found %d, want shared text %d", found.ID, shared.ID)
	}
}

func TestSQLiteStoreDeleteUserText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	lib := &models.LibraryText{Title: "Cuento"}
	if err := s.CreateLibraryText(ctx, lib); err != nil {
		t.Fatal(err)
	}
	ut := &models.UserText{OwnerID: "user-1", Title: "Cuento", LibraryTextID: lib.ID}
	if err := s.CreateUserText(ctx, ut); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertUserParagraphs(ctx, ut.ID, models.NewParagraphs([]string{"uno", "dos"}, nil)); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteUserText(ctx, ut.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetUserText(ctx, ut.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserText after delete: err = %v", err)
	}
	ps, err := s.ListUserParagraphs(ctx, ut.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 0 {
		t.Errorf("paragraphs left: %+v", ps)
	}
	if _, err := s.GetLibraryText(ctx, lib.ID); err != nil {
		t.Errorf("library text should remain: %v", err)
	}
	if err := s.DeleteUserText(ctx, ut.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}
