package gdalutils

import (
	"encoding/json"

	godal "github.com/airbusgeo/godal"
)

type AnyJson = json.RawMessage

type GdalGeo = []byte

type Dataset = godal.Dataset

type Geometry = godal.Geometry

// 数据集类型提示，用于混合格式（如gpkg）的消歧，零值为栅格
type DatasetHint uint8

const (
	HintRaster DatasetHint = iota
	HintVector
)

// 矢量写入模式
type AccessMode string

const (
	AccessOverwrite AccessMode = "overwrite"
	AccessAppend    AccessMode = "append"
)

// 任务类型
type JobKind uint8

const (
	RasterJob JobKind = iota
	VectorJob
)

// 参数全部解析完毕的一次转换任务，可序列化，可交由外部执行器运行
type ConversionJob struct {
	Kind   JobKind          `json:"kind"`
	Raster *RasterJobParams `json:"raster,omitempty"`
	Vector *VectorJobParams `json:"vector,omitempty"`
}

// 任务执行宿主，可同步或异步运行任务，错误原样上抛
type Executor interface {
	Execute(job *ConversionJob) error
}

// 内置的同步执行器
type SyncExecutor struct {
	G *GdalToolbox
}

func (e *SyncExecutor) Execute(job *ConversionJob) error {
	return e.G.RunJob(job)
}
