package gdalutils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetMetaRaster(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	in := createTifFixture(t, dir, "in.tif", 8)
	meta, err := g.GetMeta(in, HintRaster)
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Recognized() || !meta.IsRaster {
		t.Fatalf("tif should be a recognized raster: %+v", meta)
	}
	if meta.Driver != "GTiff" {
		t.Fatalf("unexpected driver: %s", meta.Driver)
	}
	if meta.Dim != [3]int{8, 8, 1} {
		t.Fatalf("unexpected dims: %v", meta.Dim)
	}
	if meta.UniformNoData {
		t.Fatal("fixture has no nodata")
	}
}

func TestGetMetaVector(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	in := writeGeoJSONFixture(t, dir, "points.geojson")
	meta, err := g.GetMeta(in, HintVector)
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Recognized() || meta.IsRaster {
		t.Fatalf("geojson should be a recognized vector: %+v", meta)
	}
	if meta.Driver != "GeoJSON" {
		t.Fatalf("unexpected driver: %s", meta.Driver)
	}
}

// 栅格提示未得到确认时矢量结果优先
func TestGetMetaVectorWinsWithoutHint(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	in := writeGeoJSONFixture(t, dir, "points.geojson")
	meta, err := g.GetMeta(in, HintRaster)
	if err != nil {
		t.Fatal(err)
	}
	if meta.IsRaster || meta.Driver != "GeoJSON" {
		t.Fatalf("vector should win: %+v", meta)
	}
}

func TestGetMetaUnrecognized(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	junk := filepath.Join(dir, "junk.dat")
	if err := os.WriteFile(junk, []byte("certainly not a dataset"), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	meta, err := g.GetMeta(junk, HintRaster)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Recognized() {
		t.Fatalf("junk should not be recognized: %+v", meta)
	}
}

func TestIntrospectProbeFailure(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	g.SetMetaWorker(&MetaWorker{Bin: "false"})
	_, err := g.introspect(filepath.Join(dir, "whatever.tif"), HintRaster)
	if _, ok := err.(*IntrospectionError); !ok {
		t.Fatalf("expected IntrospectionError, got %v", err)
	}
}

// 探针不可达时回退进程内探测
func TestIntrospectProbeFallback(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	g.SetMetaWorker(&MetaWorker{Bin: filepath.Join(dir, "missing-probe")})
	in := createTifFixture(t, dir, "in.tif", 4)
	meta, err := g.introspect(in, HintRaster)
	if err != nil {
		t.Fatal(err)
	}
	if !meta.IsRaster {
		t.Fatalf("fallback introspection failed: %+v", meta)
	}
}

func TestIntrospectInProcessFallback(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	in := createTifFixture(t, dir, "in.tif", 4)
	meta, err := g.introspect(in, HintRaster)
	if err != nil {
		t.Fatal(err)
	}
	if !meta.IsRaster {
		t.Fatalf("in process introspection failed: %+v", meta)
	}
}
