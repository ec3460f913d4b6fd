package dataset

import (
	"bytes"
	"strings"
	"testing"

	domdataset "github.com/tabsynth/tabsynth/internal/domain/dataset"
)

func TestReadCSV_InfersSchema(t *testing.T) {
	in := "Age,Region,Score\n34,North,1.5\n41,South,\n,East,2\n"

	ds, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	wantKinds := map[string]domdataset.Kind{
		"Age":    domdataset.Numeric,
		"Region": domdataset.Categorical,
		"Score":  domdataset.Numeric,
	}
	for name, want := range wantKinds {
		col, ok := ds.Schema().ColumnByName(name)
		if !ok {
			t.Fatalf("missing column %s", name)
		}
		if col.Kind() != want {
			t.Errorf("column %s kind = %v, want %v", name, col.Kind(), want)
		}
	}

	if ds.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ds.Len())
	}
	if !ds.Row(1)["Score"].IsNull() {
		t.Errorf("empty cell should ingest as null")
	}
	if !ds.Row(2)["Age"].IsNull() {
		t.Errorf("empty numeric cell should ingest as null")
	}
	if f, ok := ds.Row(0)["Age"].Float(); !ok || f != 34 {
		t.Errorf("Age[0] = %v, want 34", ds.Row(0)["Age"])
	}
}

func TestReadCSV_MixedColumnIsCategorical(t *testing.T) {
	in := "Code\n12\nA7\n9\n"

	ds, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	col, _ := ds.Schema().ColumnByName("Code")
	if col.Kind() != domdataset.Categorical {
		t.Fatalf("mixed column kind = %v, want Categorical", col.Kind())
	}
	if s, ok := ds.Row(0)["Code"].Text(); !ok || s != "12" {
		t.Errorf("Code[0] = %v, want label 12", ds.Row(0)["Code"])
	}
}

func TestReadCSV_AllEmptyColumnIsCategorical(t *testing.T) {
	in := "A,B\n1,\n2,\n"

	ds, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	col, _ := ds.Schema().ColumnByName("B")
	if col.Kind() != domdataset.Categorical {
		t.Fatalf("empty column kind = %v, want Categorical", col.Kind())
	}
}

func TestReadCSV_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty input", ""},
		{"empty header cell", "A,,C\n1,2,3\n"},
		{"duplicate header", "A,A\n1,2\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tc.in)); err == nil {
				t.Fatalf("ReadCSV succeeded, want error")
			}
		})
	}
}

func TestWriteCSV_Roundtrip(t *testing.T) {
	in := "Age,Region\n34,North\n,South\n29,\n"

	ds, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	if got := buf.String(); got != in {
		t.Fatalf("WriteCSV output = %q, want %q", got, in)
	}
}
