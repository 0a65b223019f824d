package gdalutils

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/EventKit/gdalutils/log"

	godal "github.com/airbusgeo/godal"
	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

const (
	// 引擎格式识别失败的报错特征，属预期情形，吞掉后置空元信息
	unsupportedFormatTag = "not recognized as a supported file format"
	// 数据库栅格表枚举失败属后端连接性错误，须上抛
	pgRasterBrowseTag = "Error browsing database for PostGIS Raster tables"

	DEFAULT_PROBE_BIN     = "gdalmeta"
	DEFAULT_PROBE_TIMEOUT = time.Minute
)

// 数据集元信息，每次转换生成一次，创建后只读，不持久化
type DatasetMetadata struct {
	Driver        string  `json:"driver,omitempty"`
	IsRaster      bool    `json:"is_raster"`
	NoData        float64 `json:"nodata,omitempty"`
	UniformNoData bool    `json:"uniform_nodata"`
	Dim           [3]int  `json:"dim"` // [宽, 高, 波段数]
	Srid          int     `json:"srs,omitempty"`
}

// 引擎是否识别了该数据集；未识别并非错误，由调用方决定如何处理
func (m *DatasetMetadata) Recognized() bool {
	return m.Driver != ""
}

// 隔离探测worker：探测在独立进程（gdalmeta探针）中执行，通过stdout回传单个JSON结果。
// 引擎深处的失败可能不可恢复地破坏进程状态（数据库栅格驱动实测如此），隔离后重试即可
type MetaWorker struct {
	Bin     string        // 探针可执行文件，空则回退进程内探测
	Timeout time.Duration // 等待上限，零值取DEFAULT_PROBE_TIMEOUT
}

// 进程内探测：先尝试按栅格打开，命中栅格提示则直接返回；
// 否则再按矢量打开，矢量能打开时以矢量结果为准（两者都成功但提示未确认栅格时，矢量优先）；
// 两者都打不开则返回空元信息且不报错
func (g *GdalToolbox) GetMeta(path string, hint DatasetHint) (meta *DatasetMetadata, err error) {
	meta = &DatasetMetadata{}
	rds, rErr := godal.Open(path, godal.RasterOnly())
	if rErr == nil {
		defer rds.Close()
	} else if err = g.introspectionError(path, rErr); err != nil {
		return
	}
	if rErr == nil && hint == HintRaster {
		g.fillRasterMeta(meta, rds, path)
		return
	}
	vds, vErr := godal.Open(path, godal.VectorOnly())
	if vErr == nil {
		defer vds.Close()
		g.fillVectorMeta(meta, vds, path)
		return
	}
	if err = g.introspectionError(path, vErr); err != nil {
		return
	}
	if rErr == nil {
		g.fillRasterMeta(meta, rds, path)
	} else {
		log.Info(g.logTag+"unknown file format", zap.String("path", path))
	}
	return
}

func (g *GdalToolbox) introspectionError(path string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, unsupportedFormatTag) && !strings.Contains(msg, pgRasterBrowseTag) {
		return nil
	}
	return &IntrospectionError{Path: path, Err: err}
}

func (g *GdalToolbox) fillRasterMeta(meta *DatasetMetadata, ds *Dataset, path string) {
	meta.Driver = datasetDriverName(path, false)
	meta.IsRaster = true
	bands := ds.Bands()
	if len(bands) > 0 {
		st := ds.Structure()
		meta.Dim = [3]int{st.SizeX, st.SizeY, st.NBands}
		nd, uniform := bands[0].NoData()
		for _, b := range bands[1:] {
			if !uniform {
				break
			}
			nd2, ok := b.NoData()
			uniform = ok && nd2 == nd
		}
		if uniform {
			meta.NoData, meta.UniformNoData = nd, true
		}
	}
	meta.Srid = g.refSrid(ds.SpatialRef(), path)
	log.Info(g.logTag+"identified raster dataset", zap.String("path", path),
		zap.String("driver", meta.Driver), zap.Ints("dim", meta.Dim[:]), zap.Int("srid", meta.Srid))
}

func (g *GdalToolbox) fillVectorMeta(meta *DatasetMetadata, ds *Dataset, path string) {
	meta.Driver = datasetDriverName(path, true)
	meta.IsRaster = false
	if layers := ds.Layers(); len(layers) > 0 {
		meta.Srid = g.refSrid(layers[0].SpatialRef(), path)
	}
	log.Info(g.logTag+"identified vector dataset", zap.String("path", path),
		zap.String("driver", meta.Driver), zap.Int("srid", meta.Srid))
}

// EPSG自动识别，编号非整数时留空并记录，不报错
func (g *GdalToolbox) refSrid(sr *godal.SpatialRef, path string) int {
	if sr == nil {
		return 0
	}
	sr.AutoIdentifyEPSG()
	code := sr.AuthorityCode("")
	if code == "" {
		return 0
	}
	srid := 0
	for _, c := range code {
		if c < '0' || c > '9' {
			log.Info(g.logTag+"srs authority code is not an integer",
				zap.String("path", path), zap.String("code", code))
			return 0
		}
		srid = srid*10 + int(c-'0')
	}
	return srid
}

// 驱动短名只有经典绑定才有接口，引擎报错信息则只有godal能带出，故各取一次
func datasetDriverName(path string, vector bool) (name string) {
	var (
		ds  gdal.Dataset
		err error
	)
	if vector {
		ds, err = gdal.OpenEx(path, gdal.OFVector, nil, nil, nil)
	} else {
		ds, err = gdal.OpenEx(path, gdal.OFRaster, nil, nil, nil)
	}
	if err != nil {
		return
	}
	name = ds.Driver().ShortName()
	ds.Close()
	return
}

// 探测数据集元信息；配置了隔离worker且探针可达时在探针进程中执行，并以超时兜底，
// 探针不可达则回退进程内探测
func (g *GdalToolbox) introspect(path string, hint DatasetHint) (meta *DatasetMetadata, err error) {
	w := g.probe
	if w == nil {
		return g.GetMeta(path, hint)
	}
	bin := w.Bin
	if bin == "" {
		bin = DEFAULT_PROBE_BIN
	}
	if _, e := exec.LookPath(bin); e != nil {
		log.Info(g.logTag+"meta probe unavailable, introspecting in process", zap.String("bin", bin))
		return g.GetMeta(path, hint)
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_PROBE_TIMEOUT
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	args := make([]string, 0, 2)
	if hint == HintVector {
		args = append(args, "-vector")
	}
	args = append(args, path)
	out, err := exec.CommandContext(ctx, bin, args...).Output()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		log.Error(g.logTag+"meta probe failed", zap.String("path", path), zap.Error(err))
		err = &IntrospectionError{Path: path, Err: err}
		return
	}
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		err = &IntrospectionError{Path: path, Err: ErrEmptyProbeResult}
		return
	}
	meta = &DatasetMetadata{}
	if err = json.Unmarshal(out, meta); err != nil {
		err = &IntrospectionError{Path: path, Err: err}
		meta = nil
	}
	return
}
