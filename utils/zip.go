package utils

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// 解压zip包到指定目录，返回解压出的文件列表
func Unzip(src, dstDir string) (files []string, err error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return
	}
	defer zr.Close()
	for _, f := range zr.File {
		name := filepath.Join(dstDir, filepath.Base(f.Name))
		if f.FileInfo().IsDir() || strings.HasPrefix(filepath.Base(f.Name), ".") {
			continue
		}
		if err = writeZipEntry(f, name); err != nil {
			return
		}
		files = append(files, name)
	}
	return
}

func writeZipEntry(f *zip.File, name string) (err error) {
	rc, err := f.Open()
	if err != nil {
		return
	}
	defer rc.Close()
	out, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return
}

// 将若干文件打包为zip，包内路径为文件basename
func ZipFiles(dst string, files []string) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	defer zw.Close()
	for _, file := range files {
		if err = addZipEntry(zw, file); err != nil {
			return
		}
	}
	return
}

func addZipEntry(zw *zip.Writer, file string) (err error) {
	in, err := os.Open(file)
	if err != nil {
		return
	}
	defer in.Close()
	w, err := zw.Create(filepath.Base(file))
	if err != nil {
		return
	}
	_, err = io.Copy(w, in)
	return
}
