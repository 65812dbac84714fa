package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRecordSetPreservesOrder(t *testing.T) {
	r := NewRecord()
	r.Set("company", "Acme")
	r.Set("phone", "123")
	r.Set("company", "Acme Corp")

	if got, want := r.Keys(), []string{"company", "phone"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	if v, _ := r.Get("company"); v != "Acme Corp" {
		t.Errorf("company = %q, want replaced value", v)
	}
	if r.Set("", "x") {
		t.Error("empty key accepted")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRecordNilSafe(t *testing.T) {
	var r *Record
	if r.Len() != 0 || r.Keys() != nil || r.Has("x") {
		t.Fatal("nil record should behave as empty")
	}
	if m := r.Map(); len(m) != 0 {
		t.Errorf("Map() = %v", m)
	}
	if c := r.Clone(); c.Len() != 0 {
		t.Errorf("Clone() of nil has %d fields", c.Len())
	}
}

func TestRecordZeroValueSet(t *testing.T) {
	var r Record
	r.Set("email", "a@b.c")
	if !r.Has("email") {
		t.Fatal("zero-value record lost field")
	}
}

func TestRecordCloneIsIndependent(t *testing.T) {
	r := NewRecord()
	r.Set("a", "1")
	c := r.Clone()
	c.Set("a", "2")
	c.Set("b", "3")

	if v, _ := r.Get("a"); v != "1" {
		t.Errorf("original mutated: a = %q", v)
	}
	if r.Has("b") {
		t.Error("original gained key from clone")
	}
}

func TestRecordMarshalJSONKeepsOrder(t *testing.T) {
	r := NewRecord()
	r.Set("zeta", "last \"quoted\"")
	r.Set("alpha", "first")

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"zeta":"last \"quoted\"","alpha":"first"}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}

	b, err = json.Marshal(NewRecord())
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{}" {
		t.Errorf("empty json = %s", b)
	}
}

func TestPageExtractionSource(t *testing.T) {
	p := &Page{HTML: "<top>"}
	if p.ExtractionSource() != "<top>" {
		t.Errorf("without frame: %q", p.ExtractionSource())
	}
	p.FrameHTML = "<frame>"
	if p.ExtractionSource() != "<frame>" {
		t.Errorf("with frame: %q", p.ExtractionSource())
	}
}
