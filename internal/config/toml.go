package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"
)

// parseTOML decodes a TOML document into an ordered Table. Values come from
// the regular decoder, which also validates the document; key order comes
// from a second pass over the expression stream.
func parseTOML(data []byte) (*Table, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	order, err := tomlKeyOrder(data)
	if err != nil {
		return nil, err
	}
	return fromMap(raw, nil, order), nil
}

func tomlKeyOrder(data []byte) (keyOrder, error) {
	order := make(keyOrder)
	seen := make(map[string]bool)

	var p unstable.Parser
	p.Reset(data)

	var current []string
	inArrayTable := false
	for p.NextExpression() {
		e := p.Expression()
		switch e.Kind {
		case unstable.Table:
			current = keyParts(e.Key())
			inArrayTable = false
			order.note(current, seen)
		case unstable.ArrayTable:
			current = keyParts(e.Key())
			inArrayTable = true
			order.note(current, seen)
		case unstable.KeyValue:
			if inArrayTable {
				continue
			}
			noteKeyValue(order, seen, current, e)
		}
	}
	if err := p.Error(); err != nil {
		return nil, fmt.Errorf("scan toml keys: %w", err)
	}
	return order, nil
}

func noteKeyValue(order keyOrder, seen map[string]bool, prefix []string, kv *unstable.Node) {
	path := append(append([]string(nil), prefix...), keyParts(kv.Key())...)
	order.note(path, seen)

	value := kv.Value()
	if value == nil || value.Kind != unstable.InlineTable {
		return
	}
	it := value.Children()
	for it.Next() {
		child := it.Node()
		if child.Kind == unstable.KeyValue {
			noteKeyValue(order, seen, path, child)
		}
	}
}

func keyParts(it unstable.Iterator) []string {
	var parts []string
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}
