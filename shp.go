package gdalutils

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/EventKit/gdalutils/log"
	"github.com/EventKit/gdalutils/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// 读取shp旁车.cpg中声明的编码；旁车缺失返回空串，
// 旁车本身是旧编码写的也先转成UTF-8再读
func sidecarEncoding(shp string) string {
	cpg := strings.TrimSuffix(shp, utils.FILE_EXT_SHP) + utils.FILE_EXT_CPG
	raw, err := os.ReadFile(cpg)
	if err != nil {
		return ""
	}
	if !utf8.Valid(raw) {
		if dec, e := utils.GbkToUtf8(raw); e == nil {
			raw = dec
		}
	}
	return strings.ToUpper(strings.TrimSpace(utils.PurifyForUtf8(utils.B2S(raw))))
}

// 转换整个shp文件的文本编码
func (g *GdalToolbox) NormalizeShapefileEncoding(shp, cpg string, rmOld bool) (out string, err error) {
	if cpg == SHAPE_ENCODING || cpg == UTF8_ENC {
		out = shp
		return
	}
	// cpg为空，或者不为UTF-8的，都当作GBK编码处理
	sds, err := gdal.OpenEx(shp, gdal.OFVector, nil, []string{OO_ENCODING}, nil)
	if err != nil {
		log.Error(g.logTag+"open shp error", zap.Error(err))
		return
	}
	defer sds.Close()
	log.Info(g.logTag+"start encoding shp", zap.String("shp", shp), zap.String("cpg", cpg))
	if cpg == "" {
		cpg = ZH_ENC
	}
	prefix := strings.TrimSuffix(shp, utils.FILE_EXT_SHP)
	out = prefix + "_" + cpg + utils.FILE_EXT_SHP
	dds, err := gdal.VectorTranslate(out, []gdal.Dataset{sds}, []string{"-lco", ENCODING_OPTION})
	if err != nil {
		log.Error(g.logTag + "VectorTranslate failed")
		return
	}
	dds.Close() // 生成转换后的shp文件

	if rmOld {
		if e := sds.Driver().DeleteDataset(shp); e != nil {
			log.Info(g.logTag+"delete old shp failed", zap.Error(e))
		}
	}
	log.Info(g.logTag+"end encoding shp", zap.String("shp", out))
	return
}
