package gdalutils

import (
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/EventKit/gdalutils/log"
	"github.com/EventKit/gdalutils/utils"

	gdal "github.com/airbusgeo/godal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 栅格转换任务的已解析参数
type RasterJobParams struct {
	Inputs          []string `json:"inputs"`
	Output          string   `json:"output"`
	Driver          string   `json:"driver"`
	CreationOptions []string `json:"creation_options,omitempty"`
	BandType        string   `json:"band_type,omitempty"`
	DstAlpha        bool     `json:"dst_alpha,omitempty"`
	Boundary        string   `json:"boundary,omitempty"` // 裁剪边界，必须是矢量文件
	SrcSrid         int      `json:"src_srid,omitempty"`
	DstSrid         int      `json:"dst_srid,omitempty"`
	WarpParams      []string `json:"warp_params,omitempty"`
	TranslateParams []string `json:"translate_params,omitempty"`
	UseTranslate    bool     `json:"use_translate,omitempty"`
	TaskID          string   `json:"task_id,omitempty"`
}

func epsg(srid int) string {
	return fmt.Sprintf("EPSG:%d", srid)
}

// 派生本次栅格转换的引擎参数：convert为格式与建库选项，warp为裁剪/波段/坐标系。
// 调用方给定WarpParams时整体优先于派生参数；裁剪仅在合计尺寸超过阈值时加入
func (g *GdalToolbox) rasterSwitches(p *RasterJobParams) (convert, warp []string) {
	convert = []string{"-of", p.Driver}
	for _, co := range p.CreationOptions {
		convert = append(convert, "-co", co)
	}
	if strings.EqualFold(p.Driver, DEFAULT_DRIVER) {
		convert = append(convert, "-co", RASTER_TABLE_OPTION)
	}
	if warp = p.WarpParams; len(warp) == 0 {
		if p.BandType != "" {
			warp = append(warp, "-ot", p.BandType)
		}
		if p.DstAlpha {
			warp = append(warp, "-dstalpha")
		}
		if p.SrcSrid != 0 {
			warp = append(warp, "-s_srs", epsg(p.SrcSrid))
		}
		if p.DstSrid != 0 {
			warp = append(warp, "-t_srs", epsg(p.DstSrid))
		}
	}
	if p.Boundary != "" {
		if g.clipSafe(p.Inputs) {
			warp = append(warp, "-cutline", p.Boundary, "-crop_to_cutline")
		} else {
			log.Info(g.logTag+"skip clipping of small raster", zap.Strings("inputs", p.Inputs))
		}
	}
	return
}

// 合计所有输入的像素尺寸，宽高均超过阈值才允许裁剪
func (g *GdalToolbox) clipSafe(inputs []string) bool {
	var w, h int
	for _, in := range inputs {
		meta, err := g.introspect(in, HintRaster)
		if err != nil {
			log.Error(g.logTag+"failed to measure raster", zap.String("input", in), zap.Error(err))
			continue
		}
		w += meta.Dim[0]
		h += meta.Dim[1]
	}
	return w > MIN_CLIP_DIM && h > MIN_CLIP_DIM
}

// 栅格转换：单文件transcode（UseTranslate）或多文件warp/镶嵌，
// GTiff目标或带translate参数时追加一次压缩重编码
func (g *GdalToolbox) ConvertRaster(p *RasterJobParams) (err error) {
	if p.Driver == "" {
		err = ErrMissingDriver
		return
	}
	if len(p.Inputs) == 0 {
		err = ErrNoInput
		return
	}
	if p.Boundary != "" && !fileExists(p.Boundary) {
		err = fmt.Errorf("%w: %s", ErrBoundaryNotFile, p.Boundary)
		return
	}
	if p.UseTranslate && len(p.Inputs) > 1 {
		err = ErrMultiFileTranslate
		return
	}
	convert, warp := g.rasterSwitches(p)
	if p.UseTranslate {
		opts := append(append([]string{}, convert...), p.TranslateParams...)
		err = g.translateRaster(p, p.Inputs[0], p.Output, opts)
	} else {
		err = g.warpRasters(p, append(convert, warp...))
	}
	if err != nil {
		return
	}

	if !strings.EqualFold(p.Driver, GTIFF_DRIVER_NAME) && len(p.TranslateParams) == 0 {
		return
	}
	// 内存数据集后续即弃，无需压缩
	if strings.Contains(p.Output, MEM_PATH_TAG) {
		return
	}
	staged, err := RenameDuplicate(p.Output)
	if err != nil {
		return
	}
	opts := convert
	if len(p.TranslateParams) > 0 {
		opts = append(opts, p.TranslateParams...)
	} else {
		opts = append(opts, defaultTifTranslateOpts...)
	}
	err = g.translateRaster(p, staged, p.Output, opts)
	return
}

func (g *GdalToolbox) translateRaster(p *RasterJobParams, input, output string, opts []string) (err error) {
	sds, err := gdal.Open(input, gdal.RasterOnly())
	if err != nil {
		err = &ConversionError{Driver: p.Driver, Output: output, Err: err}
		return
	}
	defer sds.Close()
	log.Info(g.logTag+"calling raster translate", zap.String("in", input),
		zap.String("out", output), zap.Strings("opts", opts), zap.String("task", p.TaskID))
	ods, err := sds.Translate(output, opts)
	if err != nil {
		err = &ConversionError{Driver: p.Driver, Output: output, Err: err}
		return
	}
	err = ods.Close()
	return
}

func (g *GdalToolbox) warpRasters(p *RasterJobParams, opts []string) (err error) {
	srcs := make([]*Dataset, 0, len(p.Inputs))
	defer func() {
		for _, sds := range srcs {
			sds.Close()
		}
	}()
	for _, in := range p.Inputs {
		sds, e := gdal.Open(in, gdal.RasterOnly())
		if e != nil {
			err = &ConversionError{Driver: p.Driver, Output: p.Output, Err: e}
			return
		}
		srcs = append(srcs, sds)
	}
	log.Info(g.logTag+"calling raster warp", zap.Strings("in", p.Inputs),
		zap.String("out", p.Output), zap.Strings("opts", opts), zap.String("task", p.TaskID))
	ods, err := gdal.Warp(p.Output, srcs, opts)
	if err != nil {
		err = &ConversionError{Driver: p.Driver, Output: p.Output, Err: err}
		return
	}
	err = ods.Close()
	return
}

// 多张GTiff镶嵌为一张
func (g *GdalToolbox) MergeGeotiffs(inFiles []string, outFile string, executor Executor) (string, error) {
	job := &ConversionJob{
		Kind: RasterJob,
		Raster: &RasterJobParams{
			Inputs: inFiles,
			Output: outFile,
			Driver: GTIFF_DRIVER_NAME,
		},
	}
	var err error
	if executor != nil {
		err = executor.Execute(job)
	} else {
		err = g.RunJob(job)
	}
	return outFile, err
}

// 栅格面化：以掩膜波段为界描出有效像素的矢量轮廓。
// band为0时自动选取：4波段取alpha，3波段先去黑边并补alpha再取，2波段取2，其余取1
func (g *GdalToolbox) PolygonizeRaster(input, output, outputType string, band int) (err error) {
	if outputType == "" {
		outputType = GEOJSON_DRIVER_NAME
	}
	sds, err := gdal.Open(input, gdal.RasterOnly())
	if err != nil {
		err = &ConversionError{Driver: outputType, Output: output, Err: err}
		return
	}
	defer func() {
		if sds != nil {
			sds.Close()
		}
	}()
	if band == 0 {
		switch len(sds.Bands()) {
		case 4:
			band = 4
		case 3:
			// RGB影像先构造alpha掩膜
			var masked string
			if masked, err = g.maskRgbRaster(input); err != nil {
				return
			}
			defer os.Remove(masked)
			sds.Close()
			if sds, err = gdal.Open(masked, gdal.RasterOnly()); err != nil {
				err = &ConversionError{Driver: outputType, Output: output, Err: err}
				return
			}
			band = 4
		case 2:
			band = 2
		default:
			band = 1
		}
	}
	bands := sds.Bands()
	if band < 1 || band > len(bands) {
		err = fmt.Errorf("no band %d in raster of %d bands", band, len(bands))
		return
	}
	maskBand := bands[band-1]
	ods, err := gdal.CreateVector(gdal.DriverName(outputType), output)
	if err != nil {
		err = &ConversionError{Driver: outputType, Output: output, Err: err}
		return
	}
	defer ods.Close()
	layer, err := ods.CreateLayer(utils.GetFilenameWithoutExt(output), nil, gdal.GTUnknown)
	if err != nil {
		err = &ConversionError{Driver: outputType, Output: output, Err: err}
		return
	}
	// 掩膜波段既做面化对象也做掩膜
	if err = maskBand.Polygonize(layer, gdal.Mask(maskBand)); err != nil {
		err = &ConversionError{Driver: outputType, Output: output, Err: err}
	}
	return
}

// 三波段影像的掩膜预处理：nearblack清理交错产生的近黑像素（工具缺席时跳过），
// 再以0 0 0为nodata补出alpha波段
func (g *GdalToolbox) maskRgbRaster(input string) (masked string, err error) {
	cleaned := input
	nb := filepath.Join(g.tmpDir, "nb_"+uuid.NewString()+".tif")
	if e := exec.Command("nearblack", "-o", nb, input).Run(); e == nil {
		cleaned = nb
		defer os.Remove(nb)
	} else {
		log.Info(g.logTag+"nearblack unavailable, masking without cleanup", zap.Error(e))
	}
	masked = filepath.Join(g.tmpDir, "mask_"+uuid.NewString()+".tif")
	err = g.ConvertRaster(&RasterJobParams{
		Inputs:     []string{cleaned},
		Output:     masked,
		Driver:     GTIFF_DRIVER_NAME,
		WarpParams: []string{"-dstalpha", "-srcnodata", "0 0 0"},
	})
	return
}

// 扫描指定波段统计[min, max, mean, stddev]，任何失败返回nil
func (g *GdalToolbox) GetBandStatistics(path string, band int) (stats []float64) {
	sds, err := gdal.Open(path, gdal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open raster for statistics failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer sds.Close()
	bands := sds.Bands()
	if band < 1 || band > len(bands) {
		log.Error(g.logTag+"no such band for statistics", zap.String("path", path), zap.Int("band", band))
		return
	}
	b := bands[band-1]
	st := b.Structure()
	nodata, hasNodata := b.NoData()
	var (
		buf      = make([]float64, st.SizeX)
		mn       = math.Inf(1)
		mx       = math.Inf(-1)
		sum, ssq float64
		cnt      int
	)
	for y := 0; y < st.SizeY; y++ {
		if err = b.Read(0, y, buf, st.SizeX, 1); err != nil {
			log.Error(g.logTag+"read band for statistics failed", zap.String("path", path), zap.Error(err))
			return
		}
		for _, v := range buf {
			if hasNodata && v == nodata {
				continue
			}
			mn = math.Min(mn, v)
			mx = math.Max(mx, v)
			sum += v
			ssq += v * v
			cnt++
		}
	}
	if cnt == 0 {
		return
	}
	mean := sum / float64(cnt)
	std := math.Sqrt(ssq/float64(cnt) - mean*mean)
	return []float64{mn, mx, mean, std}
}
