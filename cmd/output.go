package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/report"
)

// Output formats accepted by --format.
const (
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

// writeScan renders scan to w in the named format.
func writeScan(w io.Writer, scan *model.Scan, format string) error {
	switch format {
	case formatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(scan), "write json")
	case formatYAML:
		out, err := toYAML(scan)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return eris.Wrap(err, "write yaml")
	case formatMarkdown, "md":
		_, err := io.WriteString(w, report.Markdown(scan))
		return eris.Wrap(err, "write markdown")
	}
	return eris.Errorf("unknown format %q (want json, yaml or markdown)", format)
}

// toYAML converts through JSON so YAML keys match the JSON field names.
func toYAML(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "marshal json")
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, eris.Wrap(err, "parse json as yaml")
	}
	// JSON input parses into flow style; switch to block style for output.
	setBlockStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, eris.Wrap(err, "marshal yaml")
	}
	return out, nil
}

func setBlockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	for _, c := range n.Content {
		setBlockStyle(c)
	}
}

func printSummaryLine(w io.Writer, scan *model.Scan) {
	if scan.Result == nil {
		fmt.Fprintf(w, "%s: %s\n", scan.URL, scan.Status)
		return
	}
	sum := scan.Result.Summary
	fmt.Fprintf(w, "%s: score %d/100, %d issues across %d pages\n", scan.URL, sum.Score, len(sum.Issues), sum.PagesScanned)
}
