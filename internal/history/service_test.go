package history

import (
	"testing"
)

func TestSnapshotAndList(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Snapshot("prj_1", "<html>v1</html>", "Asha", "Initial site")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	second, err := svc.Snapshot("prj_1", "<html>v2</html>", "Asha", "Tweak hero")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if first.Hash == second.Hash {
		t.Fatal("distinct documents should produce distinct revisions")
	}

	revisions, err := svc.List("prj_1", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("got %d revisions, want 2", len(revisions))
	}
	if revisions[0].Hash != second.Hash {
		t.Errorf("newest revision should come first: %+v", revisions)
	}
	if revisions[1].Message != "Initial site" {
		t.Errorf("Message = %q", revisions[1].Message)
	}
}

func TestSnapshotUnchangedDocumentAddsNothing(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Snapshot("prj_1", "<html>same</html>", "Asha", "Save site")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	again, err := svc.Snapshot("prj_1", "<html>same</html>", "Asha", "Save site")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if again.Hash != first.Hash {
		t.Fatal("unchanged document should keep the same head revision")
	}

	revisions, err := svc.List("prj_1", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(revisions) != 1 {
		t.Fatalf("got %d revisions, want 1", len(revisions))
	}
}

func TestDocumentAtRevision(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Snapshot("prj_1", "<html>v1</html>", "Asha", "Initial site")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, err := svc.Snapshot("prj_1", "<html>v2</html>", "Asha", "Tweak"); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	html, err := svc.Document("prj_1", first.Hash)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if html != "<html>v1</html>" {
		t.Fatalf("html = %q", html)
	}
}

func TestListMissingProject(t *testing.T) {
	svc := New(t.TempDir())
	revisions, err := svc.List("prj_none", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if revisions != nil {
		t.Fatalf("revisions = %v, want none", revisions)
	}
}

func TestListLimit(t *testing.T) {
	svc := New(t.TempDir())
	for i, html := range []string{"<a>", "<b>", "<c>"} {
		if _, err := svc.Snapshot("prj_1", html, "Asha", ""); err != nil {
			t.Fatalf("Snapshot %d: %v", i, err)
		}
	}
	revisions, err := svc.List("prj_1", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("got %d revisions, want 2", len(revisions))
	}
}

func TestDelete(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Snapshot("prj_1", "<html></html>", "Asha", ""); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := svc.Delete("prj_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	revisions, err := svc.List("prj_1", 0)
	if err != nil || revisions != nil {
		t.Fatalf("List after delete = %v, %v", revisions, err)
	}
}
