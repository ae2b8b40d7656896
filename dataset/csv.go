package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}

func (e errInvalidLine) Is(target error) bool { return target == ErrFormat }

// ReadMNISTCSV reads label-first rows: the class, then inputNum grey levels
// in [0, 255]. Pixels are scaled to [-1, 1] and labels one-hot encoded.
func ReadMNISTCSV(reader io.Reader, inputNum, classes int) (*DataSet, error) {
	r := csv.NewReader(bufio.NewReader(reader))
	r.FieldsPerRecord = inputNum + 1
	r.ReuseRecord = true

	d := &DataSet{}
	for line := 1; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) && errors.Is(pe.Err, csv.ErrFieldCount) {
				return nil, errInvalidLine{lineNum: pe.Line, splits: len(record), expected: inputNum + 1}
			}
			return nil, fmt.Errorf("%w: line %d: %w", ErrFormat, line, err)
		}

		class, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: parsing label: %w", ErrFormat, line, err)
		}
		target, err := OneHot(class, classes)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		inputs := make([]float64, inputNum)
		for i := range inputs {
			x, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: parsing pixel %d: %w", ErrFormat, line, i, err)
			}
			inputs[i] = x/127.5 - 1
		}

		d.Samples = append(d.Samples, inputs)
		d.Labels = append(d.Labels, target)
	}
	return d, nil
}

// ReadCSV reads rows of inputNum inputs followed by outputNum targets.
func ReadCSV(reader io.Reader, inputNum, outputNum int) (*DataSet, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	d := &DataSet{}
	var lineNum int
	for scanner.Scan() {
		lineNum++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		splits := strings.Split(text, ",")
		if len(splits) != inputNum+outputNum {
			return nil, errInvalidLine{
				lineNum:  lineNum,
				splits:   len(splits),
				expected: inputNum + outputNum,
			}
		}
		inputs := make([]float64, inputNum)
		targets := make([]float64, outputNum)

		for i, split := range splits {
			num, err := strconv.ParseFloat(strings.TrimSpace(split), 64)
			if err != nil {
				if i < inputNum {
					return nil, fmt.Errorf("%w: line %d: parsing input: %w", ErrFormat, lineNum, err)
				}
				return nil, fmt.Errorf("%w: line %d: parsing target: %w", ErrFormat, lineNum, err)
			}
			if i < inputNum {
				inputs[i] = num
			} else {
				targets[i-inputNum] = num
			}
		}
		d.Samples = append(d.Samples, inputs)
		d.Labels = append(d.Labels, targets)
	}
	if err := scanner.Err(); err != nil {
		return nil, truncated("reading csv", err)
	}
	return d, nil
}
