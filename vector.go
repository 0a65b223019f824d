package gdalutils

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/EventKit/gdalutils/log"
	"github.com/EventKit/gdalutils/utils"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 矢量转换任务的已解析参数
type VectorJobParams struct {
	Inputs                 []string    `json:"inputs"`
	Output                 string      `json:"output"`
	Driver                 string      `json:"driver"`
	AccessMode             AccessMode  `json:"access_mode,omitempty"`
	SrcSrid                int         `json:"src_srid,omitempty"`
	DstSrid                int         `json:"dst_srid,omitempty"`
	Boundary               string      `json:"boundary,omitempty"` // 裁剪边界矢量文件
	SpatBbox               []float64   `json:"spat_bbox,omitempty"`
	Layers                 []string    `json:"layers,omitempty"`
	LayerName              string      `json:"layer_name,omitempty"`
	DatasetCreationOptions []string    `json:"dataset_creation_options,omitempty"`
	LayerCreationOptions   []string    `json:"layer_creation_options,omitempty"`
	ConfigOptions          [][2]string `json:"config_options,omitempty"`
	DistinctField          string      `json:"distinct_field,omitempty"`
	SkipFailures           bool        `json:"skip_failures,omitempty"`
	TaskID                 string      `json:"task_id,omitempty"`
}

// 派生本次矢量转换的ogr2ogr风格参数；layers指定时以裸参数结尾
func vectorSwitches(p *VectorJobParams, mode AccessMode) (opts []string) {
	opts = []string{"-f", p.Driver, "-" + string(mode)}
	if p.SkipFailures {
		opts = append(opts, "-skipfailures")
	}
	if p.SrcSrid != 0 {
		opts = append(opts, "-s_srs", epsg(p.SrcSrid))
	}
	if p.DstSrid != 0 {
		opts = append(opts, "-t_srs", epsg(p.DstSrid))
	}
	if p.Boundary != "" {
		opts = append(opts, "-clipsrc", p.Boundary)
	} else if len(p.SpatBbox) == 4 {
		opts = append(opts, "-spat",
			fmt.Sprint(p.SpatBbox[0]), fmt.Sprint(p.SpatBbox[1]),
			fmt.Sprint(p.SpatBbox[2]), fmt.Sprint(p.SpatBbox[3]))
	}
	if strings.EqualFold(p.Driver, DEFAULT_DRIVER) {
		// gpkg图层几何类型统一提升为multi，避免混合单/多要素插入失败
		opts = append(opts, "-nlt", PROMOTE_TO_MULTI)
	}
	if p.LayerName != "" {
		opts = append(opts, "-nln", p.LayerName)
	}
	for _, dco := range p.DatasetCreationOptions {
		opts = append(opts, "-dsco", dco)
	}
	for _, lco := range p.LayerCreationOptions {
		opts = append(opts, "-lco", lco)
	}
	opts = append(opts, p.Layers...)
	return
}

// 矢量转换：overwrite模式整体重建，append模式首个输入建库、其余逐个追加。
// DistinctField给定时追加一轮按该字段去重的重写
func (g *GdalToolbox) ConvertVector(p *VectorJobParams) (err error) {
	if p.Driver == "" {
		err = ErrMissingDriver
		return
	}
	if len(p.Inputs) == 0 {
		err = ErrNoInput
		return
	}
	mode := p.AccessMode
	if mode == "" {
		mode = AccessOverwrite
	}
	if mode == AccessOverwrite && len(p.Inputs) > 1 {
		err = ErrMultiFileOverwrite
		return
	}
	var cfg []gdal.DatasetVectorTranslateOption
	if len(p.ConfigOptions) > 0 {
		kvs := make([]string, len(p.ConfigOptions))
		for i, kv := range p.ConfigOptions {
			kvs[i] = kv[0] + "=" + kv[1]
		}
		// 引擎配置项仅对本次调用生效，不污染进程全局
		cfg = append(cfg, gdal.ConfigOption(kvs...))
	}
	for i, in := range p.Inputs {
		if in, err = g.normalizeVectorInput(in); err != nil {
			return
		}
		m := mode
		if mode == AccessAppend && i == 0 {
			// 追加序列的首个输入负责建库
			m = AccessOverwrite
		}
		if err = g.vectorTranslate(p, in, p.Output, vectorSwitches(p, m), cfg); err != nil {
			return
		}
	}
	if p.DistinctField != "" {
		err = g.distinctPass(p, cfg)
	}
	return
}

// 明确声明了旧编码的shp输入先转码为UTF-8再进引擎；
// 旁车缺失的不动，内容编码未知，盲目按GBK解码会毁掉本就是UTF-8的属性
func (g *GdalToolbox) normalizeVectorInput(in string) (out string, err error) {
	out = in
	if !strings.EqualFold(filepath.Ext(in), utils.FILE_EXT_SHP) {
		return
	}
	if enc := sidecarEncoding(in); enc != "" && enc != SHAPE_ENCODING && enc != UTF8_ENC {
		out, err = g.NormalizeShapefileEncoding(in, enc, false)
	}
	return
}

// 按指定字段去重：把已生成的输出挪作输入，以GROUP BY查询整体重写。
// 此轮不再携带裁剪/空间过滤参数，避免对已裁剪数据二次过滤
func (g *GdalToolbox) distinctPass(p *VectorJobParams, cfg []gdal.DatasetVectorTranslateOption) (err error) {
	staged, err := RenameDuplicate(p.Output)
	if err != nil {
		return
	}
	layer := p.LayerName
	if layer == "" {
		// 未显式命名时图层名随输出文件名；备份文件只换了文件名，内部图层名不变
		layer = utils.GetFilenameWithoutExt(p.Output)
	}
	opts := []string{
		"-f", p.Driver, "-" + string(AccessOverwrite),
		"-sql", fmt.Sprintf("SELECT * FROM %q GROUP BY %q", layer, p.DistinctField),
	}
	if p.LayerName != "" {
		opts = append(opts, "-nln", p.LayerName)
	}
	err = g.vectorTranslate(p, staged, p.Output, opts, cfg)
	return
}

func (g *GdalToolbox) vectorTranslate(p *VectorJobParams, input, output string, opts []string, cfg []gdal.DatasetVectorTranslateOption) (err error) {
	sds, err := gdal.Open(input, gdal.VectorOnly())
	if err != nil {
		err = &ConversionError{Driver: p.Driver, Output: output, Err: err}
		return
	}
	defer sds.Close()
	log.Info(g.logTag+"calling vector translate", zap.String("in", input),
		zap.String("out", output), zap.Strings("opts", opts), zap.String("task", p.TaskID))
	ods, err := sds.VectorTranslate(output, opts, cfg...)
	if err != nil {
		err = &ConversionError{Driver: p.Driver, Output: output, Err: err}
		return
	}
	err = ods.Close()
	return
}

// 多个GeoJSON合并为一个：逐要素把几何拷入新建的合并图层
func (g *GdalToolbox) MergeGeoJSON(inFiles []string, outFile string) (out string, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrMergeFailed, err)
		}
	}()
	if len(inFiles) == 0 {
		err = ErrNoInput
		return
	}
	ods, err := gdal.CreateVector(gdal.GeoJSON, outFile)
	if err != nil {
		return
	}
	defer ods.Close()
	layer, err := ods.CreateLayer(utils.GetFilenameWithoutExt(outFile), nil, gdal.GTUnknown)
	if err != nil {
		return
	}
	var total int
	for _, in := range inFiles {
		var cnt int
		if cnt, err = g.copyFeatures(in, layer); err != nil {
			return
		}
		total += cnt
	}
	log.Info(g.logTag+"merged GeoJSON files", zap.Strings("in", inFiles),
		zap.String("out", outFile), zap.Int("features", total))
	out = outFile
	return
}

func (g *GdalToolbox) copyFeatures(input string, dst gdal.Layer) (cnt int, err error) {
	sds, err := gdal.Open(input, gdal.VectorOnly())
	if err != nil {
		return
	}
	defer sds.Close()
	for _, l := range sds.Layers() {
		l.ResetReading()
		for {
			f := l.NextFeature()
			if f == nil {
				break
			}
			nf, e := dst.NewFeature(f.Geometry())
			f.Close()
			if e != nil {
				err = e
				return
			}
			nf.Close()
			cnt++
		}
	}
	return
}
