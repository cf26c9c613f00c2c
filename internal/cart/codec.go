package cart

import "github.com/goccy/go-json"

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshal(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}
