package testproto

import (
	"io"
	"os"
	"path"

	"github.com/jhump/protoreflect/v2/protoprint"
)

// Print writes the registry's file as .proto source to w.
func (r *Registry) Print(w io.Writer) error {
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(r.file, w)
}

// Render writes the registry's file under outDir, at its descriptor path.
func Render(r *Registry, outDir string) error {
	fp := path.Join(outDir, r.file.Path())
	if err := os.MkdirAll(path.Dir(fp), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.Print(f)
}
