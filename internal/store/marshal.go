package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/catchup/internal/record"
)

// JSON column codecs. Map keys are sorted by encoding/json, so identical
// values always produce identical column text - required for the
// "N applications equal 1" upsert property.

func marshalAudios(audios []record.Locale) (string, error) {
	if audios == nil {
		audios = []record.Locale{}
	}
	data, err := json.Marshal(audios)
	if err != nil {
		return "", fmt.Errorf("marshal audios: %w", err)
	}
	return string(data), nil
}

func unmarshalAudios(text string) ([]record.Locale, error) {
	var audios []record.Locale
	if err := json.Unmarshal([]byte(text), &audios); err != nil {
		return nil, fmt.Errorf("unmarshal audios: %w", err)
	}
	return audios, nil
}

func marshalSubtitles(subtitles []record.Subtitle) (string, error) {
	if subtitles == nil {
		subtitles = []record.Subtitle{}
	}
	data, err := json.Marshal(subtitles)
	if err != nil {
		return "", fmt.Errorf("marshal subtitles: %w", err)
	}
	return string(data), nil
}

func unmarshalSubtitles(text string) ([]record.Subtitle, error) {
	var subtitles []record.Subtitle
	if err := json.Unmarshal([]byte(text), &subtitles); err != nil {
		return nil, fmt.Errorf("unmarshal subtitles: %w", err)
	}
	return subtitles, nil
}

func marshalImageURLs(urls map[string]string) (string, error) {
	if urls == nil {
		urls = map[string]string{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("marshal image urls: %w", err)
	}
	return string(data), nil
}

func unmarshalImageURLs(text string) (map[string]string, error) {
	var urls map[string]string
	if err := json.Unmarshal([]byte(text), &urls); err != nil {
		return nil, fmt.Errorf("unmarshal image urls: %w", err)
	}
	return urls, nil
}
