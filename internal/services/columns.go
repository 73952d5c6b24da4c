package services

import (
	"fmt"
	"reflect"
	"strings"

	"campaign-sheet-service/internal/clients"
	"campaign-sheet-service/internal/flow"
	"campaign-sheet-service/internal/models"
)

// FieldKey returns the form field name of a sheet title: the part after the
// last "/", or the whole title.
func FieldKey(title string) string {
	if i := strings.LastIndex(title, "/"); i >= 0 {
		return title[i+1:]
	}
	return title
}

// column binds a sheet title to the apply-form field named by its key
func column[T models.ApplyForm](title string) flow.FieldMapping[T] {
	idx := fieldIndex[T](FieldKey(title))
	return flow.Field(title,
		func(r T) string { return reflect.ValueOf(r).Field(idx).String() },
		func(r T, v string) T {
			reflect.ValueOf(&r).Elem().Field(idx).SetString(v)
			return r
		},
	)
}

func columns[T models.ApplyForm](titles ...string) []flow.FieldMapping[T] {
	mappings := make([]flow.FieldMapping[T], len(titles))
	for i, title := range titles {
		mappings[i] = column[T](title)
	}
	return mappings
}

func fieldIndex[T any](key string) int {
	t := reflect.TypeFor[T]()
	for i := 0; i < t.NumField(); i++ {
		if name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ","); name == key {
			return i
		}
	}
	panic(fmt.Sprintf("%s has no form field %q", t.Name(), key))
}

// wiseFunc names the upload slot of an image field from the record's values
type wiseFunc func(value func(key string) string) string

func mainPicWise(value func(string) string) string {
	return fmt.Sprintf("mainPic_%s_%s", value("platformId"), value("itemId"))
}

func materialWise(value func(string) string) string {
	return fmt.Sprintf("hyalineImgPic_%s_%s_%s_0_0_0", value("platformId"), value("itemId"), value("activityEnterId"))
}

// platformSpec is everything that differs between the back-offices
type platformSpec[T models.ApplyForm] struct {
	platform models.Platform
	mappings []flow.FieldMapping[T]
	byKey    map[string]flow.FieldMapping[T]
	scrape   []clients.FormField
	uploads  map[string]wiseFunc
}

func newPlatformSpec[T models.ApplyForm](p models.Platform, mappings []flow.FieldMapping[T], scrape []clients.FormField, uploads map[string]wiseFunc) *platformSpec[T] {
	if err := flow.ValidateMappings(mappings); err != nil {
		panic(fmt.Sprintf("%s: %v", p, err))
	}
	byKey := make(map[string]flow.FieldMapping[T], len(mappings))
	for _, m := range mappings {
		byKey[FieldKey(m.Name)] = m
	}
	return &platformSpec[T]{platform: p, mappings: mappings, byKey: byKey, scrape: scrape, uploads: uploads}
}

// value reads a field of record by its form field name
func (s *platformSpec[T]) value(record T, key string) string {
	if m, ok := s.byKey[key]; ok {
		return m.Get(record)
	}
	return ""
}

func (s *platformSpec[T]) set(record T, key, v string) T {
	if m, ok := s.byKey[key]; ok {
		return m.Set(record, v)
	}
	return record
}

// placeholder is the row exported for an item whose form could not be read
func (s *platformSpec[T]) placeholder(item clients.ListedItem) T {
	var record T
	record = s.set(record, "juId", item.JuID)
	record = s.set(record, "itemId", item.ItemID)
	return s.set(record, "shortTitle", item.ItemName)
}

// wise returns the upload slot for a mapping, false when the field takes no
// uploads
func (s *platformSpec[T]) wise(record T, m flow.FieldMapping[T]) (string, bool) {
	fn, ok := s.uploads[FieldKey(m.Name)]
	if !ok {
		return "", false
	}
	return fn(func(key string) string { return s.value(record, key) }), true
}
