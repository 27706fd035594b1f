package lobby

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var errMalformed = errors.New("malformed game_update")

// DecodeGameUpdate validates and decodes a game_update payload. Participants
// may be plain usernames or {username} objects; price samples may be plain
// numbers or {price} objects. Symbols are upper-cased.
func DecodeGameUpdate(raw []byte) (GameUpdate, error) {
	if !gjson.ValidBytes(raw) {
		return GameUpdate{}, fmt.Errorf("%w: invalid json", errMalformed)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return GameUpdate{}, fmt.Errorf("%w: payload is not an object", errMalformed)
	}
	var upd GameUpdate
	id := root.Get("id")
	switch id.Type {
	case gjson.String, gjson.Number:
		upd.ID = strings.TrimSpace(id.String())
	}
	if upd.ID == "" {
		return GameUpdate{}, fmt.Errorf("%w: missing id", errMalformed)
	}
	state := root.Get("state")
	if state.Type != gjson.String || strings.TrimSpace(state.Str) == "" {
		return GameUpdate{}, fmt.Errorf("%w: game %s missing state", errMalformed, upd.ID)
	}
	upd.State = strings.TrimSpace(state.Str)

	if p := root.Get("participants"); p.Exists() && p.Type != gjson.Null {
		if !p.IsArray() {
			return GameUpdate{}, fmt.Errorf("%w: game %s participants is not a list", errMalformed, upd.ID)
		}
		for _, item := range p.Array() {
			if name := username(item); name != "" {
				upd.Participants = append(upd.Participants, name)
			}
		}
	}

	if r := root.Get("rankings"); r.Exists() && r.Type != gjson.Null {
		if !r.IsArray() {
			return GameUpdate{}, fmt.Errorf("%w: game %s rankings is not a list", errMalformed, upd.ID)
		}
		for _, item := range r.Array() {
			name := username(item)
			if name == "" {
				continue
			}
			points := item.Get("points")
			if !points.Exists() {
				points = item.Get("score")
			}
			upd.Rankings = append(upd.Rankings, Ranking{
				Username: name,
				Rank:     int(item.Get("rank").Int()),
				Points:   points.Float(),
			})
		}
	}

	if pr := root.Get("prices"); pr.Exists() && pr.Type != gjson.Null {
		if !pr.IsObject() {
			return GameUpdate{}, fmt.Errorf("%w: game %s prices is not an object", errMalformed, upd.ID)
		}
		upd.Prices = make(map[string][]float64)
		var bad error
		pr.ForEach(func(key, series gjson.Result) bool {
			symbol := strings.ToUpper(strings.TrimSpace(key.String()))
			if symbol == "" {
				return true
			}
			if !series.IsArray() {
				bad = fmt.Errorf("%w: game %s prices[%s] is not a list", errMalformed, upd.ID, symbol)
				return false
			}
			samples := make([]float64, 0, len(series.Array()))
			for _, s := range series.Array() {
				v, ok := sample(s)
				if !ok {
					bad = fmt.Errorf("%w: game %s prices[%s] has a non-numeric sample", errMalformed, upd.ID, symbol)
					return false
				}
				samples = append(samples, v)
			}
			upd.Prices[symbol] = samples
			return true
		})
		if bad != nil {
			return GameUpdate{}, bad
		}
	}
	return upd, nil
}

func username(item gjson.Result) string {
	switch {
	case item.Type == gjson.String:
		return strings.TrimSpace(item.Str)
	case item.IsObject():
		if u := item.Get("username"); u.Type == gjson.String {
			return strings.TrimSpace(u.Str)
		}
		if u := item.Get("user.username"); u.Type == gjson.String {
			return strings.TrimSpace(u.Str)
		}
	}
	return ""
}

func sample(item gjson.Result) (float64, bool) {
	switch {
	case item.Type == gjson.Number:
		return item.Num, true
	case item.IsObject():
		if p := item.Get("price"); p.Type == gjson.Number {
			return p.Num, true
		}
	}
	return 0, false
}
