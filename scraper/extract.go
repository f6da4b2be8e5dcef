package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-kabum/models"
)

const catalogScriptSelector = `script[type="application/json"]`

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, parsingError(fmt.Errorf("parse html: %w", err))
	}
	return doc, nil
}

// IsTerminalPage reports whether the listing shows its empty-results marker.
func IsTerminalPage(doc *goquery.Document, selector string) bool {
	return doc.Find(selector).Length() > 0
}

type pageState struct {
	Props struct {
		PageProps map[string]json.RawMessage `json:"pageProps"`
	} `json:"props"`
}

// ExtractCatalog decodes the catalog embedded in the page's JSON script.
// The page state holds the catalog as a JSON document serialized into the
// string props.pageProps.data, so it is decoded twice.
func ExtractCatalog(doc *goquery.Document) (models.CatalogPayload, error) {
	scripts := doc.Find(catalogScriptSelector)
	if scripts.Length() == 0 {
		return nil, structureError("no %s element", catalogScriptSelector)
	}
	if scripts.Length() > 1 {
		slog.Debug("multiple JSON scripts on page, using the first", slog.Int("count", scripts.Length()))
	}

	text := strings.TrimSpace(scripts.First().Text())
	if text == "" {
		return nil, structureError("%s element is empty", catalogScriptSelector)
	}

	var state pageState
	if err := json.Unmarshal([]byte(text), &state); err != nil {
		return nil, parsingError(fmt.Errorf("decode page state: %w", err))
	}
	rawData, ok := state.Props.PageProps["data"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawData), []byte("null")) {
		return nil, parsingError(errors.New("props.pageProps.data not found"))
	}

	var data string
	if err := json.Unmarshal(rawData, &data); err != nil {
		return nil, parsingError(fmt.Errorf("props.pageProps.data is not a string: %w", err))
	}

	payload, err := decodeCatalog(data)
	if err != nil {
		return nil, parsingError(err)
	}
	return payload, nil
}

func decodeCatalog(data string) (models.CatalogPayload, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if payload == nil {
		return nil, errors.New("decode catalog: payload is null")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode catalog: trailing data after payload")
	}
	return models.CatalogPayload(payload), nil
}
