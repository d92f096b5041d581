package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

type Bucket struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Buckets is an ordered key/value mapping. It marshals as a JSON object whose
// keys keep slice order.
type Buckets []Bucket

func (b Buckets) Get(key string) (float64, bool) {
	for _, bucket := range b {
		if bucket.Key == key {
			return bucket.Value, true
		}
	}
	return 0, false
}

func (b Buckets) Keys() []string {
	keys := make([]string, 0, len(b))
	for _, bucket := range b {
		keys = append(keys, bucket.Key)
	}
	return keys
}

func (b Buckets) Values() []float64 {
	values := make([]float64, 0, len(b))
	for _, bucket := range b {
		values = append(values, bucket.Value)
	}
	return values
}

func (b Buckets) Total() float64 {
	total := 0.0
	for _, bucket := range b {
		total += bucket.Value
	}
	return total
}

// SortedByValue returns a copy ordered by value descending. Equal values keep
// their current order.
func (b Buckets) SortedByValue() Buckets {
	out := append(Buckets(nil), b...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

func (b Buckets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, bucket := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(bucket.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(bucket.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *Buckets) UnmarshalJSON(data []byte) error {
	out := Buckets{}
	err := decodeOrderedObject(data, func(key string, dec *json.Decoder) error {
		var value float64
		if err := dec.Decode(&value); err != nil {
			return err
		}
		out = append(out, Bucket{Key: key, Value: value})
		return nil
	})
	if err != nil {
		return err
	}
	*b = out
	return nil
}

// decodeOrderedObject walks a JSON object in document order. A null
// document is treated as an empty object.
func decodeOrderedObject(data []byte, field func(key string, dec *json.Decoder) error) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := field(key, dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

// bucketSet accumulates values per key and remembers first-seen order.
type bucketSet struct {
	index map[string]int
	items Buckets
}

func newBucketSet() *bucketSet {
	return &bucketSet{index: make(map[string]int)}
}

func (s *bucketSet) add(key string, value float64) {
	if i, ok := s.index[key]; ok {
		s.items[i].Value += value
		return
	}
	s.index[key] = len(s.items)
	s.items = append(s.items, Bucket{Key: key, Value: value})
}

func (s *bucketSet) sortedByKey() Buckets {
	out := append(Buckets{}, s.items...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// inOrder returns the buckets whose key appears in order, following it.
func (s *bucketSet) inOrder(order []string) Buckets {
	out := Buckets{}
	for _, key := range order {
		if i, ok := s.index[key]; ok {
			out = append(out, s.items[i])
		}
	}
	return out
}

type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// HourHistogram lists hours of day with at least one order, ascending.
type HourHistogram []HourCount

func (h HourHistogram) Count(hour int) int {
	for _, entry := range h {
		if entry.Hour == hour {
			return entry.Count
		}
	}
	return 0
}

func (h HourHistogram) Total() int {
	total := 0
	for _, entry := range h {
		total += entry.Count
	}
	return total
}

// Busiest returns up to limit hours ordered by count descending, earlier
// hours first on ties.
func (h HourHistogram) Busiest(limit int) HourHistogram {
	out := append(HourHistogram(nil), h...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (h HourHistogram) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.Itoa(entry.Hour))
		buf.WriteString(`":`)
		buf.WriteString(strconv.Itoa(entry.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (h *HourHistogram) UnmarshalJSON(data []byte) error {
	out := HourHistogram{}
	err := decodeOrderedObject(data, func(key string, dec *json.Decoder) error {
		hour, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("hour key %q: %w", key, err)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return err
		}
		out = append(out, HourCount{Hour: hour, Count: count})
		return nil
	})
	if err != nil {
		return err
	}
	*h = out
	return nil
}
