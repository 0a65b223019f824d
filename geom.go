package gdalutils

import (
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	degToRad = math.Pi / 180

	xr = 20037508.34 / 180
	yr = xr / degToRad
	tr = degToRad / 2
)

func rad(degrees float64) float64 {
	return degrees * degToRad
}

func PointsToWkt(lon1, lon2, lat1, lat2 float64) string {
	return fmt.Sprintf("POLYGON((%[1]f %[3]f, %[1]f %[4]f, %[2]f %[4]f, %[2]f %[3]f, %[1]f %[3]f))", lon1, lon2, lat1, lat2)
}

func SpanToWkt(span [4]float64) string {
	return PointsToWkt(span[0], span[1], span[2], span[3])
}

func Convert4326To3857(lon, lat float64) (lonIn3857, latIn3857 float64) {
	lonIn3857 = lon * xr
	latIn3857 = math.Log(math.Tan((90+lat)*tr)) * yr
	return
}

func Convert3857To4326(lonIn3857, latIn3857 float64) (lon, lat float64) {
	lon = lonIn3857 / xr
	lat = math.Atan(math.Pow(math.E, latIn3857/yr))/tr - 90
	return
}

// 解析GeoJSON几何或要素中的多边形集合，其他几何类型返回错误
func polygonsOf(geo AnyJson) (polys []orb.Polygon, err error) {
	gm, err := geojson.UnmarshalGeometry(geo)
	if err != nil {
		ft, fErr := geojson.UnmarshalFeature(geo)
		if fErr != nil {
			err = ErrGdalWrongGeoJSON
			return
		}
		gm, err = geojson.NewGeometry(ft.Geometry), nil
	}
	switch t := gm.Geometry().(type) {
	case orb.Polygon:
		polys = []orb.Polygon{t}
	case orb.MultiPolygon:
		polys = t
	default:
		err = ErrUnsupportedGeometry
	}
	return
}

// 计算GeoJSON多边形在球面上的近似测地面积，单位km²
// 仅支持单环多边形（含多个单环成员的MultiPolygon），内环会被忽略
// 采用Chamberlain-Duquette球面盈余求和
func GetPolygonArea(geo AnyJson) (area float64, err error) {
	polys, err := polygonsOf(geo)
	if err != nil {
		return
	}
	var a float64
	for _, poly := range polys {
		if len(poly) == 0 {
			continue
		}
		ring := poly[0]
		n := len(ring)
		if n < 4 {
			continue
		}
		// 追加倒数第二个顶点，便于循环取前驱
		ext := make(orb.Ring, n+1)
		copy(ext, ring)
		ext[n] = ring[n-2]
		for i := 0; i < n-1; i++ {
			prev := i - 1
			if prev < 0 {
				prev = n
			}
			a += (rad(ext[i+1][0]) - rad(ext[prev][0])) * math.Sin(rad(ext[i][1]))
		}
	}
	area = math.Abs(a) * EARTH_RADIUS_KM * EARTH_RADIUS_KM / 2
	return
}

// 判断GeoJSON是否为轴对齐矩形（envelope）：单多边形单环，恰好5个坐标且闭合，
// 前4个点中x与y各恰有2个不同取值。入参可为GeoJSON文件路径或内联JSON文本。
// 本函数只是规划提示，异常输入一律返回false，不报错
func IsEnvelope(geojsonOrPath string) bool {
	raw := []byte(geojsonOrPath)
	if b, err := os.ReadFile(geojsonOrPath); err == nil {
		raw = b
	}
	polys, err := polygonsOf(raw)
	if err != nil || len(polys) != 1 || len(polys[0]) != 1 {
		return false
	}
	ring := polys[0][0]
	if len(ring) != 5 || ring[4] != ring[0] {
		return false
	}
	xs := map[float64]struct{}{}
	ys := map[float64]struct{}{}
	for _, c := range ring {
		xs[c[0]] = struct{}{}
		ys[c[1]] = struct{}{}
	}
	return len(xs) == 2 && len(ys) == 2
}

// 选区bbox有效性：w<e 且 s<n
func IsValidBbox(bbox []float64) bool {
	if len(bbox) != 4 {
		return false
	}
	return bbox[0] < bbox[2] && bbox[1] < bbox[3]
}

// WGS84合法性：各坐标须落在经纬度取值范围内
func ValidateBbox(bbox []float64) bool {
	if len(bbox) != 4 {
		return false
	}
	return bbox[0] >= -180 && bbox[2] <= 180 && bbox[1] >= -90 && bbox[3] <= 90
}

// 合并两个bbox，acc为空时以nb为初值；对所见bbox集合满足交换律与结合律
func ExpandBbox(acc, nb []float64) []float64 {
	if len(acc) != 4 {
		return append([]float64{}, nb...)
	}
	acc[0] = math.Min(acc[0], nb[0])
	acc[1] = math.Min(acc[1], nb[1])
	acc[2] = math.Max(acc[2], nb[2])
	acc[3] = math.Max(acc[3], nb[3])
	return acc
}

// bbox转为闭合5点矩形环
func BboxToPolygon(bbox [4]float64) orb.Polygon {
	w, s, e, n := bbox[0], bbox[1], bbox[2], bbox[3]
	return orb.Polygon{orb.Ring{{w, s}, {e, s}, {e, n}, {w, n}, {w, s}}}
}

func BboxToGeoJSON(bbox [4]float64) AnyJson {
	raw, _ := geojson.NewGeometry(BboxToPolygon(bbox)).MarshalJSON()
	return raw
}

// 取多边形的外接bbox，与BboxToPolygon精确互逆
func PolygonToBbox(poly orb.Polygon) [4]float64 {
	b := poly.Bound()
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// 两点间投影距离（米）：两点连线从4326转入3857后的长度
// 非严格测地距离，带投影形变，用于像元尺度估算足够
func (g *GdalToolbox) GetDistance(pointA, pointB [2]float64) (meters float64, err error) {
	wkt := fmt.Sprintf("LINESTRING(%g %g,%g %g)", pointA[0], pointA[1], pointB[0], pointB[1])
	out, err := g.TransformWkt(wkt, UNIVERSAL_SRID, WEB_MERCATOR_SRID)
	if err != nil {
		return
	}
	span, err := g.GetWktSpan(out, WEB_MERCATOR_SRID)
	if err != nil {
		return
	}
	meters = math.Hypot(span[1]-span[0], span[3]-span[2])
	return
}

// 按给定比例尺（米/像素）估算bbox对应的栅格尺寸，至少1x1
func (g *GdalToolbox) GetDimensions(bbox [4]float64, scale float64) (width, height int, err error) {
	w, err := g.GetDistance([2]float64{bbox[0], bbox[1]}, [2]float64{bbox[2], bbox[1]})
	if err != nil {
		return
	}
	h, err := g.GetDistance([2]float64{bbox[0], bbox[1]}, [2]float64{bbox[0], bbox[3]})
	if err != nil {
		return
	}
	if width = int(w / scale); width < 1 {
		width = 1
	}
	if height = int(h / scale); height < 1 {
		height = 1
	}
	return
}

// 像元尺寸（度）换算为米，取两轴均值再取整
func (g *GdalToolbox) GetScaleInMeters(pixelX, pixelY float64) (scale int, err error) {
	origin := [2]float64{0, 0}
	dx, err := g.GetDistance(origin, [2]float64{0, pixelX})
	if err != nil {
		return
	}
	dy, err := g.GetDistance(origin, [2]float64{0, pixelY})
	if err != nil {
		return
	}
	scale = int(math.Round((dx + dy) / 2))
	return
}

// 转换bbox坐标系，返回重投影后矩形的外接bbox
func (g *GdalToolbox) ConvertBbox(bbox [4]float64, srid, tSrid int) (out [4]float64, err error) {
	if srid == tSrid {
		out = bbox
		return
	}
	wkt := PointsToWkt(bbox[0], bbox[2], bbox[1], bbox[3])
	ret, err := g.TransformWkt(wkt, srid, tSrid)
	if err != nil {
		return
	}
	span, err := g.GetWktSpan(ret, tSrid)
	if err != nil {
		return
	}
	out = [4]float64{span[0], span[2], span[1], span[3]}
	return
}
