package util

import (
	"log"
	"mime/multipart"
	"net/http"
)

type MultipartFile struct {
	Field  string
	File   multipart.File
	Header *multipart.FileHeader
}

type ParsedMultipart struct {
	Files []MultipartFile
}

func (pm *ParsedMultipart) CloseFiles() {
	for _, mf := range pm.Files {
		if mf.File != nil {
			mf.File.Close()
		}
	}
}

// ParseMultipart parses a multipart/form-data body under the configured
// memory limit and collects the file parts. Parts over maxFileSize are
// skipped rather than failing the whole request.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxMemory, maxFileSize int64) (*ParsedMultipart, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMemory)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, err
	}

	return &ParsedMultipart{Files: extractFiles(r, maxFileSize)}, nil
}

func extractFiles(r *http.Request, maxFileSize int64) []MultipartFile {
	var filesOut []MultipartFile

	for key, fhs := range r.MultipartForm.File {
		for _, fh := range fhs {
			if maxFileSize > 0 && fh.Size > maxFileSize {
				log.Println("skipped too large file:", fh.Filename, fh.Size)
				continue
			}

			f, err := fh.Open()
			if err != nil {
				log.Println("skipped file, could not open:", fh.Filename, err)
				continue
			}

			filesOut = append(filesOut, MultipartFile{Field: key, File: f, Header: fh})
		}
	}

	return filesOut
}
