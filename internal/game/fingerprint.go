package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint короткий детерминированный отпечаток представления.
//
// Это только дешевая проверка "не устарел ли мой снимок": xxhash64 не
// криптостойкий, отпечаток можно подобрать, и на него нельзя полагаться как на
// проверку целостности или подлинности.
//
// Значение сначала сериализуется, потом разбирается в дерево map/slice и
// сериализуется повторно: encoding/json пишет ключи map в отсортированном
// порядке, так что порядок полей в промежуточном представлении не влияет.
func Fingerprint(v any) (string, error) {
	canon, err := canonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(canon)), nil
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return json.Marshal(normalize(tree))
}

// normalize приводит числа к единому виду, чтобы 1 и 1.0 давали один отпечаток
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, x := range t {
			t[k] = normalize(x)
		}
		return t
	case []any:
		for i, x := range t {
			t[i] = normalize(x)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return json.Number(strconv.FormatInt(i, 10))
		}
		if f, err := t.Float64(); err == nil {
			return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
		}
		return t
	default:
		return t
	}
}
