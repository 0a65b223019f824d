package gdalutils

import (
	"bytes"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func pointOf(t *testing.T, raw AnyJson) orb.Point {
	t.Helper()
	gm, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		t.Fatal(err)
	}
	pt, ok := gm.Geometry().(orb.Point)
	if !ok {
		t.Fatalf("expected a point geometry, got %T", gm.Geometry())
	}
	return pt
}

func TestGeoJSONWkbRoundTrip(t *testing.T) {
	g := NewGdalToolbox(t.TempDir())
	src := AnyJson(`{"type":"Point","coordinates":[114.1,30.2]}`)
	wkb, err := g.GeoJSONToWkb(src)
	if err != nil || len(wkb) == 0 {
		t.Fatalf("wkb conversion failed: %v", err)
	}
	back, err := g.WkbToGeoJSON(wkb, UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	pt := pointOf(t, back)
	if math.Abs(pt[0]-114.1) > 1e-9 || math.Abs(pt[1]-30.2) > 1e-9 {
		t.Fatalf("round trip shifted coordinates: %v", pt)
	}
	if _, err = g.GeoJSONToWkb(AnyJson(`{"bogus":1}`)); err != ErrGdalWrongGeoJSON {
		t.Fatalf("expected ErrGdalWrongGeoJSON, got %v", err)
	}
}

func TestWktWkbConversion(t *testing.T) {
	g := NewGdalToolbox(t.TempDir())
	wkt := PointsToWkt(113, 116, 29, 32)
	wkb, err := g.WktToWkb(wkt, UNIVERSAL_SRID)
	if err != nil || len(wkb) == 0 {
		t.Fatalf("wkt to wkb failed: %v", err)
	}
	back, err := g.WkbToWkt(wkb, UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	// 文本格式可能有差异，拿经纬度范围对账
	span, err := g.GetWktSpan(back, UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	if span != [4]float64{113, 116, 29, 32} {
		t.Fatalf("unexpected span after round trip: %v", span)
	}
}

func TestTransformWkb(t *testing.T) {
	g := NewGdalToolbox(t.TempDir())
	wkb, err := g.GeoJSONToWkb(AnyJson(`{"type":"Point","coordinates":[114.1,30.2]}`))
	if err != nil {
		t.Fatal(err)
	}
	same, err := g.TransformWkb(wkb, UNIVERSAL_SRID, UNIVERSAL_SRID)
	if err != nil || !bytes.Equal(same, wkb) {
		t.Fatalf("same srid should return input unchanged: %v", err)
	}
	out, err := g.TransformWkb(wkb, UNIVERSAL_SRID, WEB_MERCATOR_SRID)
	if err != nil {
		t.Fatal(err)
	}
	back, err := g.WkbToGeoJSON(out, WEB_MERCATOR_SRID)
	if err != nil {
		t.Fatal(err)
	}
	pt := pointOf(t, back)
	wantX, wantY := Convert4326To3857(114.1, 30.2)
	// 引擎转换与闭式换算对账，容差1米
	if math.Abs(pt[0]-wantX) > 1 || math.Abs(pt[1]-wantY) > 1 {
		t.Fatalf("transformed point %v, want (%f, %f)", pt, wantX, wantY)
	}
}

func TestCheckWkt(t *testing.T) {
	g := NewGdalToolbox(t.TempDir())
	if err := g.CheckWkt(PointsToWkt(0, 1, 0, 1), UNIVERSAL_SRID); err != nil {
		t.Fatalf("valid wkt rejected: %v", err)
	}
	if err := g.CheckWkt("POLYGON((", UNIVERSAL_SRID); err != ErrInvalidWKT {
		t.Fatalf("expected ErrInvalidWKT, got %v", err)
	}
}
