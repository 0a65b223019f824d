package gdalutils

import (
	"errors"
	"fmt"
)

var (
	ErrGdalDriverCreate = errors.New("gdal driver create err")
	ErrGdalDriverOpen   = errors.New("gdal driver open err")
	ErrVoidSrid         = errors.New("gdal dataset with void srid")
	ErrInvalidWKT       = errors.New("invalid WKT")
	ErrGdalWrongGeoJSON = errors.New("gdal wrong GeoJSON")

	ErrNoInput             = errors.New("no input files specified")
	ErrMultiFileOverwrite  = errors.New("cannot overwrite with a list of files")
	ErrMultiFileTranslate  = errors.New("cannot use translate with a list of files")
	ErrMissingDriver       = errors.New("cannot convert raster without a gdal driver")
	ErrEmptyBoundary       = errors.New("boundary carries no representation")
	ErrInvalidBbox         = errors.New("invalid bounding box")
	ErrBoundaryNotFound    = errors.New("boundary path does not exist")
	ErrBoundaryNotFile     = errors.New("boundary must be the path to a vector file")
	ErrBoundaryRecursion   = errors.New("boundary reprojection cannot itself carry a boundary")
	ErrUnsupportedGeometry = errors.New("geometry type is not polygonal")
	ErrProtectedFile       = errors.New("file is protected and cannot be renamed")
	ErrMergeFailed         = errors.New("file merge process failed")
	ErrEmptyProbeResult    = errors.New("introspection worker returned no result")
)

// 数据集探测失败：worker异常退出、超时，或引擎报非格式识别类错误
type IntrospectionError struct {
	Path string
	Err  error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("introspection of %s failed: %v", e.Path, e.Err)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

// 引擎warp/translate调用失败
type ConversionError struct {
	Driver string
	Output string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion to %s (%s) failed: %v", e.Output, e.Driver, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
