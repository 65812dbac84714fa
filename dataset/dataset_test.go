package dataset

import (
	"reflect"
	"testing"

	"github.com/use-agent/dirscrape/models"
)

func record(pairs ...string) *models.Record {
	r := models.NewRecord()
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

func TestMerge_RecordWinsOverInput(t *testing.T) {
	row := Row{"url": "https://example.com/m/1", "phone": "old", "note": "keep"}
	cols := NewColumns("url", "phone", "note")

	merged, union := Merge(row, record("phone", "new", "fax", "123"), cols)

	if merged["phone"] != "new" {
		t.Errorf("phone = %q, want new", merged["phone"])
	}
	if merged["note"] != "keep" || merged["url"] != "https://example.com/m/1" {
		t.Errorf("input-only columns changed: %v", merged)
	}
	if !union.Has("fax") {
		t.Errorf("union missing fax")
	}
}

func TestMerge_DoesNotMutateArguments(t *testing.T) {
	row := Row{"url": "u", "phone": "old"}
	cols := NewColumns("url", "phone")

	Merge(row, record("phone", "new", "fax", "1"), cols)

	if row["phone"] != "old" || len(row) != 2 {
		t.Errorf("row mutated: %v", row)
	}
	if cols.Has("fax") || len(cols) != 2 {
		t.Errorf("columns mutated: %v", cols.Sorted())
	}
}

func TestDataset_ColumnsNeverShrink(t *testing.T) {
	ds := New([]string{"url"}, []Row{{"url": "1"}, {"url": "2"}, {"url": "3"}})
	records := []*models.Record{
		record("a", "1", "b", "2"),
		models.NewRecord(),
		record("c", "3"),
	}

	prev := ds.Columns.Clone()
	for i, rec := range records {
		ds.Apply(i, rec)
		for name := range prev {
			if !ds.Columns.Has(name) {
				t.Fatalf("column %q lost after row %d", name, i)
			}
		}
		if len(ds.Columns) < len(prev) {
			t.Fatalf("column set shrank after row %d", i)
		}
		prev = ds.Columns.Clone()
	}
}

func TestDataset_UnionAcrossHeterogeneousRows(t *testing.T) {
	ds := New([]string{"url"}, []Row{{"url": "https://x/1"}, {"url": "https://x/2"}})
	ds.Apply(0, record("a", "A1", "b", "B1"))
	ds.Apply(1, record("b", "B2", "c", "C2"))

	want := []string{"a", "b", "c", "url"}
	if got := ds.Header(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Header = %v, want %v", got, want)
	}
	if _, ok := ds.Rows[0]["c"]; ok {
		t.Errorf("row 1 should not carry c")
	}
	if _, ok := ds.Rows[1]["a"]; ok {
		t.Errorf("row 2 should not carry a")
	}
}

func TestNew_SeedsColumnsFromHeaderAndRows(t *testing.T) {
	ds := New([]string{"url", "name"}, []Row{{"url": "u", "name": "n", "extra": "e"}})
	if got := ds.Header(); !reflect.DeepEqual(got, []string{"extra", "name", "url"}) {
		t.Errorf("Header = %v", got)
	}
}
