package gdalutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/EventKit/gdalutils/log"
	"github.com/EventKit/gdalutils/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 转换边界（AOI）的三种表示：矢量文件路径、bbox、内联GeoJSON几何。
// 进入转换前统一归一化为边界文件
type Boundary struct {
	file    string
	bbox    []float64
	geojson AnyJson
}

func BoundaryFromFile(path string) *Boundary {
	return &Boundary{file: path}
}

func BoundaryFromBbox(west, south, east, north float64) *Boundary {
	return &Boundary{bbox: []float64{west, south, east, north}}
}

func BoundaryFromGeoJSON(geo AnyJson) *Boundary {
	return &Boundary{geojson: geo}
}

// bbox表示的边界返回原始四元组，供矢量转换设置空间过滤
func (b *Boundary) Bbox() ([]float64, bool) {
	if len(b.bbox) == 4 {
		return b.bbox, true
	}
	return nil, false
}

// 一次转换的完整参数集；栅格与矢量参数互斥，按探测结果取用其一。
// 零值含义与缺省行为一致：目标坐标系4326、驱动自动推断、overwrite模式、栅格提示
type ConvertRequest struct {
	Input    []string
	Output   string
	Driver   string
	Boundary *Boundary
	SrcSrid  int
	DstSrid  int
	Hint     DatasetHint
	TaskID   string

	// 栅格参数
	CreationOptions []string
	WarpParams      []string // 提供时整体取代派生的warp参数
	TranslateParams []string // 提供时整体取代派生的translate参数
	UseTranslate    bool     // 强制走单文件translate而非warp

	// 矢量参数
	AccessMode             AccessMode
	Layers                 []string
	LayerName              string
	DatasetCreationOptions []string
	LayerCreationOptions   []string
	ConfigOptions          [][2]string // 引擎配置项，仅本次调用生效
	DistinctField          string
	SkipFailures           bool

	// 可选执行器；未提供时任务同步就地执行
	Executor Executor
}

// 转换入口：解析名称 → 探测 → 定驱动 → 归一化并重投影边界 → 分派栅格/矢量任务 → 压缩打包。
// 返回物化后的输出路径（打包格式返回包路径）
func (g *GdalToolbox) Convert(req *ConvertRequest) (out string, err error) {
	return g.convert(req, 0)
}

func (g *GdalToolbox) convert(req *ConvertRequest, depth int) (out string, err error) {
	if len(req.Input) == 0 {
		err = ErrNoInput
		return
	}
	// 自递归仅服务于边界重投影，递归调用在结构上不允许再携带边界，保证有界
	if depth > 0 && req.Boundary != nil {
		err = ErrBoundaryRecursion
		return
	}
	log.Info(g.logTag+"start conversion", zap.Strings("input", req.Input),
		zap.String("output", req.Output), zap.String("task", req.TaskID))

	inputs := make([]string, len(req.Input))
	copy(inputs, req.Input)
	out = req.Output
	for i, in := range inputs {
		if inputs[i], out, err = resolveNames(in, out); err != nil {
			return
		}
	}

	// 多输入约定元信息一致，以首个为准
	meta, err := g.introspect(inputs[0], req.Hint)
	if err != nil {
		return
	}

	driver := req.Driver
	if driver == "" {
		if driver = meta.Driver; driver == "" {
			driver = DEFAULT_DRIVER
		}
	}
	bandType := ""
	if strings.EqualFold(driver, DEFAULT_DRIVER) {
		bandType = GPKG_BAND_TYPE
	}
	// 各波段nodata不一致时以目标alpha通道代偿透明度
	dstAlpha := meta.IsRaster && !meta.UniformNoData

	dstSrid := req.DstSrid
	if dstSrid == 0 {
		dstSrid = UNIVERSAL_SRID
	}

	var boundaryFile string
	if req.Boundary != nil {
		var temp bool
		if boundaryFile, temp, err = g.materializeBoundary(req.Boundary); err != nil {
			return
		}
		if temp {
			defer os.Remove(boundaryFile)
		}
		if meta.Srid != 0 && meta.Srid != UNIVERSAL_SRID {
			// 裁剪要求边界与源数据同坐标系，经有界自递归把边界文件转入源坐标系
			aoiFile := strings.TrimSuffix(boundaryFile, filepath.Ext(boundaryFile)) + AOI_SUFFIX
			if boundaryFile, err = g.convert(&ConvertRequest{
				Input:   []string{boundaryFile},
				Output:  aoiFile,
				Driver:  DEFAULT_DRIVER,
				DstSrid: meta.Srid,
				Hint:    HintVector,
				TaskID:  req.TaskID,
			}, depth+1); err != nil {
				return
			}
		}
	}

	job := &ConversionJob{}
	if meta.IsRaster {
		srcSrid := req.SrcSrid
		job.Kind = RasterJob
		job.Raster = &RasterJobParams{
			Inputs:          inputs,
			Output:          out,
			Driver:          driver,
			CreationOptions: req.CreationOptions,
			BandType:        bandType,
			DstAlpha:        dstAlpha,
			Boundary:        boundaryFile,
			SrcSrid:         srcSrid,
			DstSrid:         dstSrid,
			WarpParams:      req.WarpParams,
			TranslateParams: req.TranslateParams,
			UseTranslate:    req.UseTranslate,
			TaskID:          req.TaskID,
		}
	} else {
		var spat []float64
		if req.Boundary != nil {
			spat, _ = req.Boundary.Bbox()
		}
		job.Kind = VectorJob
		job.Vector = &VectorJobParams{
			Inputs:                 inputs,
			Output:                 out,
			Driver:                 driver,
			AccessMode:             req.AccessMode,
			SrcSrid:                req.SrcSrid,
			DstSrid:                dstSrid,
			Boundary:               boundaryFile,
			SpatBbox:               spat,
			Layers:                 req.Layers,
			LayerName:              req.LayerName,
			DatasetCreationOptions: req.DatasetCreationOptions,
			LayerCreationOptions:   req.LayerCreationOptions,
			ConfigOptions:          req.ConfigOptions,
			DistinctField:          req.DistinctField,
			SkipFailures:           req.SkipFailures,
			TaskID:                 req.TaskID,
		}
	}

	if req.Executor != nil {
		err = req.Executor.Execute(job)
	} else {
		err = g.RunJob(job)
	}
	if err != nil {
		return
	}

	if RequiresZip(driver) {
		out, err = g.bundleOutput(out)
	}
	return
}

// 就地同步执行一个转换任务
func (g *GdalToolbox) RunJob(job *ConversionJob) error {
	if job.Kind == VectorJob {
		return g.ConvertVector(job.Vector)
	}
	return g.ConvertRaster(job.Raster)
}

// 归一化边界为矢量文件：bbox与内联几何落盘为临时GeoJSON；
// zip包内的shp会先解出并按需转码；给定路径不存在则报错
func (g *GdalToolbox) materializeBoundary(b *Boundary) (file string, temp bool, err error) {
	switch {
	case b.file != "":
		if !fileExists(b.file) {
			err = fmt.Errorf("%w: %s", ErrBoundaryNotFound, b.file)
			return
		}
		file = b.file
		if strings.EqualFold(filepath.Ext(file), utils.FILE_EXT_ZIP) {
			file, err = g.extractBoundaryShp(file)
		}
	case len(b.bbox) > 0:
		if !IsValidBbox(b.bbox) {
			err = fmt.Errorf("%w: %v", ErrInvalidBbox, b.bbox)
			return
		}
		geo := BboxToGeoJSON([4]float64{b.bbox[0], b.bbox[1], b.bbox[2], b.bbox[3]})
		file, err = g.writeTempGeoJSON(geo)
		temp = true
	case len(b.geojson) > 0:
		file, err = g.writeTempGeoJSON(b.geojson)
		temp = true
	default:
		err = ErrEmptyBoundary
	}
	return
}

func (g *GdalToolbox) writeTempGeoJSON(geo AnyJson) (file string, err error) {
	file = filepath.Join(g.tmpDir, fmt.Sprintf(TMP_GEOJSON, uuid.NewString()))
	err = os.WriteFile(file, geo, os.ModePerm)
	return
}

// 上传的边界shp打在zip包里：解压到独立临时子目录，旧编码的顺手转成UTF-8
func (g *GdalToolbox) extractBoundaryShp(zipFile string) (shp string, err error) {
	dir, err := utils.GetUniqSubDir(g.tmpDir)
	if err != nil {
		return
	}
	shp, isUtf8, err := utils.GetShpInZip(zipFile, dir)
	if err != nil {
		return
	}
	if !isUtf8 {
		shp, err = g.NormalizeShapefileEncoding(shp, sidecarEncoding(shp), true)
	}
	return
}
