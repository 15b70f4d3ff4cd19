package worker

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalAssetStoreRemove(t *testing.T) {
	dir := t.TempDir()
	name := "bot1_media.jpg"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	a := LocalAssetStore{Dir: dir}
	if err := a.Remove("https://relay.example/static/uploads/" + name + "?v=2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
		t.Fatalf("asset still present: %v", err)
	}
}

func TestLocalAssetStoreRemoveMissingFile(t *testing.T) {
	a := LocalAssetStore{Dir: t.TempDir()}
	if err := a.Remove("https://relay.example/static/uploads/gone.jpg"); err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
}

func TestLocalAssetStoreRemoveBareURL(t *testing.T) {
	a := LocalAssetStore{Dir: t.TempDir()}
	if err := a.Remove("https://relay.example/"); err != nil {
		t.Fatalf("url without file segment: %v", err)
	}
}
