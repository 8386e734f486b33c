// Package stac rewrites asset hrefs of STAC Items and FeatureCollections so
// clients can read the referenced blobs directly.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/eo-datahub/stac-gateway/internal/logger"
	"github.com/eo-datahub/stac-gateway/internal/tokencache"
)

// Rewriter appends signed access tokens to asset hrefs. It never fails: any
// item or asset it cannot handle is left as it was.
type Rewriter struct {
	strategy Strategy
	cache    *tokencache.Cache
	logger   *logger.Logger
}

func NewRewriter(log *logger.Logger, strategy Strategy, cache *tokencache.Cache) *Rewriter {
	if log == nil {
		log = logger.Production()
	}
	return &Rewriter{
		strategy: strategy,
		cache:    cache,
		logger:   log.WithFields("strategy", strategy.Name()),
	}
}

// replacement swaps the raw JSON value at [start, end) of the document.
type replacement struct {
	start, end int
	path       string
	raw        string
	href       string
}

// pass carries per-call state: the document, pending edits, and tokens already
// resolved so each scope is looked up at most once per document.
type pass struct {
	body   []byte
	edits  []replacement
	tokens map[string]string
}

// Rewrite returns body with asset hrefs signed. Bodies that are not a JSON
// object, or that hold neither features nor assets, are returned unchanged.
func (r *Rewriter) Rewrite(ctx context.Context, body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return body
	}

	p := &pass{body: body, tokens: make(map[string]string)}

	if features := doc.Get("features"); features.IsArray() {
		features.ForEach(func(idx, item gjson.Result) bool {
			r.rewriteItem(ctx, p, "features."+idx.String()+".", item)
			return ctx.Err() == nil
		})
	} else if doc.Get("assets").Exists() {
		r.rewriteItem(ctx, p, "", doc)
	}

	return p.apply(r.logger)
}

func (r *Rewriter) rewriteItem(ctx context.Context, p *pass, prefix string, item gjson.Result) {
	assets := item.Get("assets")
	if !assets.IsObject() {
		r.logger.Debug("Skipping item without assets", "item", item.Get("id").String())
		return
	}

	itemScope, err := r.strategy.ItemScope(item)
	if err != nil {
		r.logger.Debug("Skipping item", "item", item.Get("id").String(), "reason", err)
		return
	}

	assets.ForEach(func(name, asset gjson.Result) bool {
		href := asset.Get("href")
		if href.Type != gjson.String {
			return true
		}

		scope, err := r.strategy.AssetScope(itemScope, href.String())
		if err != nil {
			r.logger.Debug("Skipping asset", "asset", name.String(), "reason", err)
			return true
		}

		token, ok := r.token(ctx, p, scope)
		if !ok {
			return true
		}

		p.edits = append(p.edits, replacement{
			start: href.Index,
			end:   href.Index + len(href.Raw),
			path:  prefix + "assets." + escapePathKey(name.String()) + ".href",
			raw:   href.Raw,
			href:  r.strategy.Apply(href.String(), scope, token),
		})
		return true
	})
}

func (r *Rewriter) token(ctx context.Context, p *pass, scope string) (string, bool) {
	if token, seen := p.tokens[scope]; seen {
		return token, token != ""
	}

	record, ok := r.cache.GetOrRefresh(ctx, scope, r.strategy.Issue)
	if !ok {
		p.tokens[scope] = ""
		return "", false
	}
	p.tokens[scope] = record.Token
	return record.Token, true
}

// apply splices all edits in one pass. Edits whose offsets do not line up with
// the document fall back to a path-based sjson update.
func (p *pass) apply(log *logger.Logger) []byte {
	if len(p.edits) == 0 {
		return p.body
	}

	slices.SortFunc(p.edits, func(a, b replacement) int { return a.start - b.start })

	var out bytes.Buffer
	out.Grow(len(p.body) + len(p.edits)*256)

	var fallback []replacement
	last := 0
	for _, e := range p.edits {
		if e.start < last || e.start <= 0 || e.end > len(p.body) || string(p.body[e.start:e.end]) != e.raw {
			fallback = append(fallback, e)
			continue
		}
		out.Write(p.body[last:e.start])
		out.Write(encodeString(e.href))
		last = e.end
	}
	out.Write(p.body[last:])

	result := out.Bytes()
	for _, e := range fallback {
		updated, err := sjson.SetBytes(result, e.path, e.href)
		if err != nil {
			log.Debug("Failed to set asset href", "path", e.path, "error", err)
			continue
		}
		result = updated
	}
	return result
}

func encodeString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
	`!`, `\!`,
	`:`, `\:`,
)

func escapePathKey(key string) string {
	return pathEscaper.Replace(key)
}
