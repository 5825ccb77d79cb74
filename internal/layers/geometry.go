package layers

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

// DecodeGeometry decodes a single result value. It returns nil when v is
// null or is not a supported geometry encoding.
func DecodeGeometry(v any) orb.Geometry {
	var g orb.Geometry
	switch val := v.(type) {
	case nil:
		return nil
	case orb.Geometry:
		g = val
	case map[string]any:
		g = fromMap(val)
	case string:
		g = fromText(val)
	case []byte:
		g = fromBytes(val)
	case json.RawMessage:
		g = fromJSON(val)
	default:
		return nil
	}
	if g == nil {
		return nil
	}
	// Collections carry no single shape to draw.
	if _, ok := g.(orb.Collection); ok {
		return nil
	}
	return g
}

func fromMap(m map[string]any) orb.Geometry {
	if _, ok := m["type"]; !ok {
		return nil
	}
	if _, ok := m["coordinates"]; !ok {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return fromJSON(data)
}

func fromText(s string) orb.Geometry {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if s[0] == '{' {
		return fromJSON([]byte(s))
	}
	data, err := hex.DecodeString(strings.TrimPrefix(s, `\x`))
	if err != nil {
		return nil
	}
	return fromWKB(data)
}

func fromBytes(b []byte) orb.Geometry {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return fromJSON(trimmed)
	}
	if g := fromWKB(b); g != nil {
		return g
	}
	return fromText(string(b))
}

func fromJSON(data []byte) orb.Geometry {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil || g == nil {
		return nil
	}
	return g.Geometry()
}

func fromWKB(data []byte) orb.Geometry {
	if len(data) < 5 {
		return nil
	}
	if g, err := wkb.Unmarshal(data); err == nil {
		return g
	}
	if g, _, err := ewkb.Unmarshal(data); err == nil {
		return g
	}
	return nil
}
