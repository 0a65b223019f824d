package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestZipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"a.shp", "a.cpg"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(name), os.ModePerm); err != nil {
			t.Fatal(err)
		}
		files = append(files, path)
	}
	archive := filepath.Join(dir, "a.zip")
	if err := ZipFiles(archive, files); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	if err := os.Mkdir(out, os.ModePerm); err != nil {
		t.Fatal(err)
	}
	extracted, err := Unzip(archive, out)
	if err != nil {
		t.Fatal(err)
	}
	if len(extracted) != 2 {
		t.Fatalf("expected 2 extracted files, got %v", extracted)
	}
	raw, err := os.ReadFile(filepath.Join(out, "a.shp"))
	if err != nil || string(raw) != "a.shp" {
		t.Fatalf("extracted content mismatch: %q (%v)", raw, err)
	}
}

func TestGetShpInZip(t *testing.T) {
	dir := t.TempDir()
	shp := filepath.Join(dir, "b.shp")
	cpg := filepath.Join(dir, "b.cpg")
	if err := os.WriteFile(shp, []byte("shp"), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cpg, []byte("UTF-8\n"), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	archive := filepath.Join(dir, "b.zip")
	if err := ZipFiles(archive, []string{shp, cpg}); err != nil {
		t.Fatal(err)
	}
	out, err := GetUniqSubDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	path, utf8, err := GetShpInZip(archive, out)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "b.shp" || !utf8 {
		t.Fatalf("unexpected shp lookup: %s utf8=%v", path, utf8)
	}

	// 包内无shp
	plain := filepath.Join(dir, "c.zip")
	if err = ZipFiles(plain, []string{cpg}); err != nil {
		t.Fatal(err)
	}
	if _, _, err = GetShpInZip(plain, out); err != ErrNoShpInZip {
		t.Fatalf("expected ErrNoShpInZip, got %v", err)
	}
}
