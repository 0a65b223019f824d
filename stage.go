package gdalutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/EventKit/gdalutils/log"
	"github.com/EventKit/gdalutils/utils"

	"go.uber.org/zap"
)

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// 将原文件重命名为old_前缀的备份名，返回备份路径。
// 幂等：备份与原文件并存（上次失败残留）时先清掉旧备份再重命名；
// 仅备份存在时视为上次已完成重命名，直接复用。
// 受保护的源格式一律拒绝重命名
func RenameDuplicate(original string) (backup string, err error) {
	ext := strings.ToLower(filepath.Ext(original))
	for _, p := range protectedExts {
		if ext == p {
			err = fmt.Errorf("%w: %s", ErrProtectedFile, original)
			return
		}
	}
	backup = filepath.Join(filepath.Dir(original), BACKUP_PREFIX+filepath.Base(original))
	if fileExists(backup) && fileExists(original) {
		if err = os.Remove(backup); err != nil {
			return
		}
	}
	if !fileExists(backup) {
		log.Info("renaming original file", zap.String("from", original), zap.String("to", backup))
		err = os.Rename(original, backup)
	}
	return
}

// 剥除引擎数据集名装饰前缀（如GTIFF_RAW:），返回剥除的前缀与净路径
func StripEnginePrefixes(dataset string) (prefix, stripped string) {
	stripped = dataset
	for _, p := range enginePrefixes {
		if strings.HasPrefix(stripped, p) {
			prefix = p
			stripped = strings.TrimPrefix(stripped, p)
		}
	}
	return
}

// 解析输入输出名：输出缺省取净输入路径；输出与净输入重名时把原文件挪作备份，
// 留给引擎的输入改指备份（带回原有前缀），绝不覆盖调用方的原始文件
func resolveNames(inputFile, outputFile string) (in, out string, err error) {
	prefix, stripped := StripEnginePrefixes(inputFile)
	in, out = inputFile, outputFile
	if out == "" {
		out = stripped
	}
	if out == stripped {
		var backup string
		if backup, err = RenameDuplicate(stripped); err != nil {
			return
		}
		in = prefix + backup
	}
	return
}

// 是否属于约定打zip包分发的格式
func RequiresZip(driver string) bool {
	for _, d := range zippedDrivers {
		if strings.EqualFold(driver, d) {
			return true
		}
	}
	return false
}

// 包名：kml对应kmz，其余加.zip后缀
func GetZipName(file string) string {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	if strings.EqualFold(filepath.Ext(file), FILE_EXT_KML) {
		return base + FILE_EXT_KMZ
	}
	return base + utils.FILE_EXT_ZIP
}

// 将输出打为zip包：目录打包全部内容，单文件连同同名附属文件（shp的shx/dbf/prj/cpg）一起
func (g *GdalToolbox) bundleOutput(output string) (archive string, err error) {
	archive = GetZipName(output)
	var files []string
	if st, e := os.Stat(output); e == nil && st.IsDir() {
		filepath.Walk(output, func(path string, info os.FileInfo, wErr error) error {
			if wErr == nil && !info.IsDir() {
				files = append(files, path)
			}
			return nil
		})
	} else {
		base := strings.TrimSuffix(output, filepath.Ext(output))
		matches, _ := filepath.Glob(base + ".*")
		for _, m := range matches {
			if m != archive && fileExists(m) {
				files = append(files, m)
			}
		}
		if len(files) == 0 {
			files = []string{output}
		}
	}
	log.Info(g.logTag+"bundling output", zap.String("archive", archive), zap.Int("files", len(files)))
	err = utils.ZipFiles(archive, files)
	return
}
