package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"mlp_lib/nn"
)

const (
	idxImagesMagic = 0x00000803
	idxLabelsMagic = 0x00000801

	// maxIDXItems bounds the item count a header may declare.
	maxIDXItems = 1 << 24
)

// Images is the content of an IDX image file: Count samples of Rows×Cols
// grey levels, row-major.
type Images struct {
	Count  int
	Rows   int
	Cols   int
	Pixels [][]byte
}

func truncated(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: truncated: %w", ErrFormat, what, io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("%s: %w: %w", what, nn.ErrIO, err)
}

// ReadIDXImages reads an IDX3 image file: magic 0x803, count, rows, cols,
// then count*rows*cols bytes. At most limit images are read; limit <= 0
// reads all of them.
func ReadIDXImages(r io.Reader, limit int) (*Images, error) {
	br := bufio.NewReader(r)

	var header [4]uint32
	if err := binary.Read(br, binary.BigEndian, &header); err != nil {
		return nil, truncated("reading image header", err)
	}
	if header[0] != idxImagesMagic {
		return nil, fmt.Errorf("%w: image magic %#x, want %#x", ErrFormat, header[0], idxImagesMagic)
	}
	if header[1] > maxIDXItems || header[2] == 0 || header[3] == 0 || header[2] > 1<<12 || header[3] > 1<<12 {
		return nil, fmt.Errorf("%w: implausible image header %v", ErrFormat, header[1:])
	}

	img := &Images{
		Count: int(header[1]),
		Rows:  int(header[2]),
		Cols:  int(header[3]),
	}
	if limit > 0 && limit < img.Count {
		img.Count = limit
	}

	img.Pixels = make([][]byte, img.Count)
	for i := range img.Pixels {
		img.Pixels[i] = make([]byte, img.Rows*img.Cols)
		if _, err := io.ReadFull(br, img.Pixels[i]); err != nil {
			return nil, truncated(fmt.Sprintf("reading image %d", i), err)
		}
	}
	return img, nil
}

// ReadIDXLabels reads an IDX1 label file: magic 0x801, count, then one byte
// per label.
func ReadIDXLabels(r io.Reader, limit int) ([]byte, error) {
	br := bufio.NewReader(r)

	var header [2]uint32
	if err := binary.Read(br, binary.BigEndian, &header); err != nil {
		return nil, truncated("reading label header", err)
	}
	if header[0] != idxLabelsMagic {
		return nil, fmt.Errorf("%w: label magic %#x, want %#x", ErrFormat, header[0], idxLabelsMagic)
	}
	if header[1] > maxIDXItems {
		return nil, fmt.Errorf("%w: implausible label count %d", ErrFormat, header[1])
	}

	count := int(header[1])
	if limit > 0 && limit < count {
		count = limit
	}
	labels := make([]byte, count)
	if _, err := io.ReadFull(br, labels); err != nil {
		return nil, truncated("reading labels", err)
	}
	return labels, nil
}

// FromIDX pairs images with labels, scales pixels to [-1, 1] and one-hot
// encodes the labels over classes.
func FromIDX(img *Images, labels []byte, classes int) (*DataSet, error) {
	if len(labels) != img.Count {
		return nil, fmt.Errorf("%w: %d images but %d labels", ErrFormat, img.Count, len(labels))
	}
	d := &DataSet{
		Samples: make([][]float64, img.Count),
		Labels:  make([][]float64, img.Count),
		Rows:    img.Rows,
		Cols:    img.Cols,
	}
	for i, px := range img.Pixels {
		d.Samples[i] = Scale(px)
		oh, err := OneHot(int(labels[i]), classes)
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", i, err)
		}
		d.Labels[i] = oh
	}
	return d, nil
}

// LoadMNIST reads an IDX image file and its label file.
func LoadMNIST(imagesPath, labelsPath string, classes, limit int) (*DataSet, error) {
	f, err := os.Open(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("opening images: %w: %w", nn.ErrIO, err)
	}
	defer f.Close()
	img, err := ReadIDXImages(f, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imagesPath, err)
	}

	lf, err := os.Open(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("opening labels: %w: %w", nn.ErrIO, err)
	}
	defer lf.Close()
	labels, err := ReadIDXLabels(lf, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", labelsPath, err)
	}

	return FromIDX(img, labels, classes)
}

// WriteIDXImages writes images in IDX3 form.
func WriteIDXImages(w io.Writer, img *Images) error {
	header := [4]uint32{idxImagesMagic, uint32(len(img.Pixels)), uint32(img.Rows), uint32(img.Cols)}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return fmt.Errorf("writing image header: %w: %w", nn.ErrIO, err)
	}
	for i, px := range img.Pixels {
		if len(px) != img.Rows*img.Cols {
			return &nn.ShapeError{What: "image", Index: i, Want: img.Rows * img.Cols, Got: len(px)}
		}
		if _, err := w.Write(px); err != nil {
			return fmt.Errorf("writing image %d: %w: %w", i, nn.ErrIO, err)
		}
	}
	return nil
}

// WriteIDXLabels writes labels in IDX1 form.
func WriteIDXLabels(w io.Writer, labels []byte) error {
	header := [2]uint32{idxLabelsMagic, uint32(len(labels))}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return fmt.Errorf("writing label header: %w: %w", nn.ErrIO, err)
	}
	if _, err := w.Write(labels); err != nil {
		return fmt.Errorf("writing labels: %w: %w", nn.ErrIO, err)
	}
	return nil
}
