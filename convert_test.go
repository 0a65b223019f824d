package gdalutils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	gdal "github.com/airbusgeo/godal"
)

type captureExecutor struct {
	job *ConversionJob
}

func (e *captureExecutor) Execute(job *ConversionJob) error {
	e.job = job
	return nil
}

const pointFeatures = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Point","coordinates":[114.1,30.2]}}]}`

func writeGeoJSONFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(pointFeatures), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	return path
}

func createTifFixture(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	ds, err := gdal.Create(gdal.GTiff, path, 1, gdal.Byte, size, size)
	if err != nil {
		t.Fatal(err)
	}
	if err = ds.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConvertNoInput(t *testing.T) {
	g := NewGdalToolbox(t.TempDir())
	if _, err := g.Convert(&ConvertRequest{}); err != ErrNoInput {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
}

func TestConvertBoundaryRecursionGuard(t *testing.T) {
	g := NewGdalToolbox(t.TempDir())
	req := &ConvertRequest{
		Input:    []string{"a.gpkg"},
		Boundary: BoundaryFromBbox(0, 0, 1, 1),
	}
	if _, err := g.convert(req, 1); err != ErrBoundaryRecursion {
		t.Fatalf("expected ErrBoundaryRecursion, got %v", err)
	}
}

func TestMaterializeBoundary(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	if _, _, err := g.materializeBoundary(&Boundary{}); err != ErrEmptyBoundary {
		t.Fatalf("expected ErrEmptyBoundary, got %v", err)
	}
	if _, _, err := g.materializeBoundary(BoundaryFromFile(filepath.Join(dir, "gone.json"))); !errors.Is(err, ErrBoundaryNotFound) {
		t.Fatalf("expected ErrBoundaryNotFound, got %v", err)
	}
	if _, _, err := g.materializeBoundary(BoundaryFromBbox(1, 0, -1, 1)); !errors.Is(err, ErrInvalidBbox) {
		t.Fatalf("expected ErrInvalidBbox, got %v", err)
	}
	file, temp, err := g.materializeBoundary(BoundaryFromBbox(0, 0, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(file)
	if !temp || !fileExists(file) {
		t.Fatalf("bbox boundary should land in a temp file: %s", file)
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !IsEnvelope(string(raw)) {
		t.Fatal("materialized bbox should be an envelope polygon")
	}
}

func TestConvertDispatchVector(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	in := writeGeoJSONFixture(t, dir, "points.geojson")
	cap := &captureExecutor{}
	out, err := g.Convert(&ConvertRequest{
		Input:    []string{in},
		Output:   filepath.Join(dir, "out.gpkg"),
		Driver:   DEFAULT_DRIVER,
		Hint:     HintVector,
		Boundary: BoundaryFromBbox(113, 29, 116, 32),
		Executor: cap,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join(dir, "out.gpkg") {
		t.Fatalf("unexpected output: %s", out)
	}
	if cap.job == nil || cap.job.Kind != VectorJob || cap.job.Vector == nil {
		t.Fatal("vector job not dispatched")
	}
	p := cap.job.Vector
	if p.Driver != DEFAULT_DRIVER || p.DstSrid != UNIVERSAL_SRID {
		t.Fatalf("unexpected vector params: %+v", p)
	}
	if p.Boundary == "" || len(p.SpatBbox) != 4 {
		t.Fatalf("boundary not materialized for vector job: %+v", p)
	}
}

func TestConvertDispatchRaster(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	in := createTifFixture(t, dir, "in.tif", 10)
	cap := &captureExecutor{}
	if _, err := g.Convert(&ConvertRequest{
		Input:    []string{in},
		Output:   filepath.Join(dir, "out.gpkg"),
		Executor: cap,
	}); err != nil {
		t.Fatal(err)
	}
	if cap.job == nil || cap.job.Kind != RasterJob || cap.job.Raster == nil {
		t.Fatal("raster job not dispatched")
	}
	p := cap.job.Raster
	if p.Driver != "GTiff" {
		t.Fatalf("driver should come from source dataset: %s", p.Driver)
	}
	if p.DstSrid != UNIVERSAL_SRID {
		t.Fatalf("dst srid should default to 4326: %d", p.DstSrid)
	}
}

func TestConvertDispatchRasterGpkg(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	in := createTifFixture(t, dir, "in.tif", 10)
	cap := &captureExecutor{}
	if _, err := g.Convert(&ConvertRequest{
		Input:    []string{in},
		Output:   filepath.Join(dir, "out.gpkg"),
		Driver:   DEFAULT_DRIVER,
		Executor: cap,
	}); err != nil {
		t.Fatal(err)
	}
	p := cap.job.Raster
	if p.BandType != GPKG_BAND_TYPE {
		t.Fatalf("gpkg target should force Byte bands: %q", p.BandType)
	}
	// 裸GTiff各波段无nodata，透明度交给目标alpha
	if !p.DstAlpha {
		t.Fatal("non uniform nodata should enable dst alpha")
	}
}

func TestConvertRenamesCollidingOutput(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	in := writeGeoJSONFixture(t, dir, "points.geojson")
	cap := &captureExecutor{}
	out, err := g.Convert(&ConvertRequest{
		Input:    []string{in},
		Hint:     HintVector,
		Executor: cap,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("output should default to input path: %s", out)
	}
	backup := filepath.Join(dir, BACKUP_PREFIX+"points.geojson")
	if cap.job.Vector.Inputs[0] != backup || !fileExists(backup) {
		t.Fatalf("engine input should be the backup: %v", cap.job.Vector.Inputs)
	}
}

func TestClipGuard(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	small := createTifFixture(t, dir, "small.tif", 60)
	big := createTifFixture(t, dir, "big.tif", 150)
	if g.clipSafe([]string{small}) {
		t.Fatal("60px raster should not be clipped")
	}
	if !g.clipSafe([]string{big}) {
		t.Fatal("150px raster should be clipped")
	}
	// 多输入尺寸合计
	if !g.clipSafe([]string{small, small}) {
		t.Fatal("two 60px rasters together exceed the clip threshold")
	}
}
