package gdalutils

const (
	FILE_EXT_SHP  = ".shp"
	FILE_EXT_CPG  = ".cpg"
	FILE_EXT_JSON = ".json"
	FILE_EXT_KML  = ".kml"
	FILE_EXT_KMZ  = ".kmz"
	FILE_EXT_PBF  = ".pbf"

	SHAPE_ENCODING  = "UTF-8"
	UTF8_ENC        = "UTF8"
	ZH_ENC          = "GBK"
	ENCODING_OPTION = "ENCODING=" + SHAPE_ENCODING
	OO_ENCODING     = "ENCODING=" + ZH_ENC

	SHP_DRIVER_NAME     = "ESRI Shapefile"
	KML_DRIVER_NAME     = "KML"
	GEOJSON_DRIVER_NAME = "GeoJSON"
	GTIFF_DRIVER_NAME   = "gtiff"
	DEFAULT_DRIVER      = "gpkg" // 未指定且无法识别时的缺省容器格式

	UNIVERSAL_SRID    = 4326
	WEB_MERCATOR_SRID = 3857

	EARTH_RADIUS_KM = 6371

	// gpkg栅格表名固定为imagery，下游应用无法再改表名
	RASTER_TABLE_OPTION = "RASTER_TABLE=imagery"
	PROMOTE_TO_MULTI    = "PROMOTE_TO_MULTI"
	GPKG_BAND_TYPE      = "Byte" // gpkg栅格仅支持Byte波段

	// 过小的栅格裁剪在引擎中不可靠（0x1像素错误），宽或高合计不超过该值时跳过裁剪
	MIN_CLIP_DIM = 100

	BACKUP_PREFIX = "old_"
	AOI_SUFFIX    = "-aoi.gpkg"

	TMP_GEOJSON  = "geo_%s.json"
	MEM_PATH_TAG = "vsimem"
)

var (
	// 只读源格式，不允许重命名或覆盖
	protectedExts = []string{FILE_EXT_PBF}

	// 引擎数据集名装饰前缀
	enginePrefixes = []string{"GTIFF_RAW:"}

	// 约定以zip包分发的多文件格式
	zippedDrivers = []string{KML_DRIVER_NAME, SHP_DRIVER_NAME}

	// GTiff二次编码的缺省压缩参数
	defaultTifTranslateOpts = []string{"-co", "COMPRESS=LZW", "-co", "TILED=YES", "-co", "BIGTIFF=YES"}

	// web墨卡托全幅范围
	FullWorldBbox3857 = [4]float64{
		-20037508.342789244,
		-20037508.342789244,
		20037508.342789244,
		20037508.342789244,
	}
)
