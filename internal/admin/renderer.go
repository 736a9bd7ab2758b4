// ABOUTME: HTML renderer for grid pages in the admin viewer.
// ABOUTME: Builds the table, pager, column switches and expand/contract forms with Tailwind classes.

package admin

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/2389/rowview/internal/columns"
	"github.com/2389/rowview/internal/grid"
	"github.com/2389/rowview/internal/store"
)

// UnionColumns lists every column shown by at least one row, in first-seen order.
func UnionColumns(rendered []columns.RenderedRow) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, rr := range rendered {
		for _, c := range rr.Cells {
			if _, ok := seen[c.Column]; ok {
				continue
			}
			seen[c.Column] = struct{}{}
			cols = append(cols, c.Column)
		}
	}
	return cols
}

// RenderGridTable renders the page rows. Rows that lack a column get an empty cell.
// Kind summary cells carry the toggle forms for the row and for each discovered key.
func RenderGridTable(pv grid.PageView) string {
	var sb strings.Builder
	cols := UnionColumns(pv.Rows)
	base := gridPath(pv.Grid)

	sb.WriteString(`<table class="min-w-full divide-y divide-gray-200">`)
	sb.WriteString(`<thead class="bg-gray-50"><tr>`)
	for _, col := range cols {
		sb.WriteString(fmt.Sprintf(`<th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">%s</th>`,
			html.EscapeString(col)))
	}
	sb.WriteString(`</tr></thead>`)
	sb.WriteString(`<tbody class="bg-white divide-y divide-gray-200">`)

	if len(pv.Rows) == 0 {
		sb.WriteString(fmt.Sprintf(`<tr><td colspan="%d" class="px-4 py-6 text-center text-sm text-gray-400">No rows on this page</td></tr>`,
			max(len(cols), 1)))
	}

	for _, rr := range pv.Rows {
		kinds := make(map[string]columns.KindState, len(rr.Kinds))
		for _, ks := range rr.Kinds {
			kinds[ks.Kind] = ks
		}
		byColumn := make(map[string]columns.Cell, len(rr.Cells))
		for _, c := range rr.Cells {
			byColumn[c.Column] = c
		}

		sb.WriteString(fmt.Sprintf(`<tr id="row-%s">`, html.EscapeString(rr.ID)))
		for _, col := range cols {
			cell, ok := byColumn[col]
			if !ok {
				sb.WriteString(`<td class="px-4 py-2 text-sm text-gray-300"></td>`)
				continue
			}
			if ks, ok := kinds[col]; ok && cell.Kind == col {
				sb.WriteString(`<td class="px-4 py-2 text-sm text-gray-900 align-top">`)
				sb.WriteString(renderKindControls(base, rr.ID, ks, cell.Value))
				sb.WriteString(`</td>`)
				continue
			}
			sb.WriteString(fmt.Sprintf(`<td class="px-4 py-2 text-sm text-gray-900 align-top whitespace-pre-wrap">%s</td>`,
				html.EscapeString(formatValue(cell.Value))))
		}
		sb.WriteString(`</tr>`)
	}

	sb.WriteString(`</tbody></table>`)
	return sb.String()
}

func renderKindControls(base, rowID string, ks columns.KindState, count any) string {
	var sb strings.Builder

	label := "+"
	if ks.Expanded {
		label = "−"
	}
	sb.WriteString(fmt.Sprintf(`<form method="post" action="%s" class="inline"><button class="text-blue-600 hover:text-blue-900 font-mono">%s</button></form> <span class="text-gray-500">%s keys</span>`,
		html.EscapeString(base+"/rows/"+url.PathEscape(rowID)+"/"+url.PathEscape(ks.Kind)+"/toggle"),
		label,
		html.EscapeString(formatValue(count))))

	if len(ks.Keys) == 0 {
		return sb.String()
	}
	sb.WriteString(`<div class="mt-1 flex flex-wrap gap-1">`)
	for _, k := range ks.Keys {
		cls := "bg-gray-100 text-gray-700"
		if k.Expanded {
			cls = "bg-blue-100 text-blue-800"
		}
		sb.WriteString(fmt.Sprintf(`<form method="post" action="%s"><button class="px-1 rounded text-xs %s">%s</button></form>`,
			html.EscapeString(base+"/rows/"+url.PathEscape(rowID)+"/"+url.PathEscape(ks.Kind)+"/keys/"+url.PathEscape(k.Key)+"/toggle"),
			cls,
			html.EscapeString(k.Key)))
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

// RenderPager renders previous/next links and the window position.
func RenderPager(pv grid.PageView) string {
	var sb strings.Builder
	base := gridPath(pv.Grid)

	sb.WriteString(`<nav class="flex items-center justify-between py-3 text-sm">`)
	if pv.HasPrevious {
		sb.WriteString(fmt.Sprintf(`<a href="%s?page=%d" class="text-blue-600 hover:text-blue-900">&larr; Previous</a>`,
			html.EscapeString(base), pv.Page-1))
	} else {
		sb.WriteString(`<span class="text-gray-300">&larr; Previous</span>`)
	}

	sb.WriteString(fmt.Sprintf(`<span class="text-gray-600">Page %d of %d &middot; rows %d&ndash;%d of %d</span>`,
		pv.Page, pv.TotalPages, pv.StartIndex, pv.EndIndex, pv.TotalItems))
	if pv.Pending > 0 {
		sb.WriteString(fmt.Sprintf(`<span class="text-amber-600">%d rows not loaded</span>`, pv.Pending))
	}

	if pv.HasNext {
		sb.WriteString(fmt.Sprintf(`<a href="%s?page=%d" class="text-blue-600 hover:text-blue-900">Next &rarr;</a>`,
			html.EscapeString(base), pv.Page+1))
	} else {
		sb.WriteString(`<span class="text-gray-300">Next &rarr;</span>`)
	}
	sb.WriteString(`</nav>`)
	return sb.String()
}

// RenderColumnSwitches renders one toggle per core column.
func RenderColumnSwitches(pv grid.PageView) string {
	var sb strings.Builder
	base := gridPath(pv.Grid)

	sb.WriteString(`<div class="flex gap-2 py-2 text-sm">`)
	for _, col := range pv.Columns {
		cls := "bg-gray-100 text-gray-400 line-through"
		if col.Enabled {
			cls = "bg-green-100 text-green-800"
		}
		sb.WriteString(fmt.Sprintf(`<form method="post" action="%s"><button class="px-2 rounded %s">%s</button></form>`,
			html.EscapeString(base+"/columns/"+url.PathEscape(col.Key)+"/toggle"),
			cls,
			html.EscapeString(col.Key)))
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

// RenderLogTable renders recent request log entries.
func RenderLogTable(logs []*store.RequestLog) string {
	var sb strings.Builder

	sb.WriteString(`<table class="min-w-full divide-y divide-gray-200">`)
	sb.WriteString(`<thead class="bg-gray-50"><tr>`)
	for _, h := range []string{"Time", "Grid", "Method", "Path", "Status", "ms"} {
		sb.WriteString(fmt.Sprintf(`<th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">%s</th>`, h))
	}
	sb.WriteString(`</tr></thead><tbody class="bg-white divide-y divide-gray-200">`)

	for _, l := range logs {
		statusCls := "text-gray-900"
		if l.StatusCode >= 400 {
			statusCls = "text-red-600"
		}
		sb.WriteString(fmt.Sprintf(`<tr><td class="px-4 py-2 text-sm text-gray-500">%s</td><td class="px-4 py-2 text-sm">%s</td><td class="px-4 py-2 text-sm">%s</td><td class="px-4 py-2 text-sm font-mono">%s</td><td class="px-4 py-2 text-sm %s">%d</td><td class="px-4 py-2 text-sm">%d</td></tr>`,
			l.Timestamp.Format("2006-01-02 15:04:05"),
			html.EscapeString(l.GridName),
			html.EscapeString(l.Method),
			html.EscapeString(l.Path),
			statusCls,
			l.StatusCode,
			l.DurationMs))
	}
	sb.WriteString(`</tbody></table>`)
	return sb.String()
}

// RenderLayout wraps body in the admin page shell.
func RenderLayout(title, body string) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	sb.WriteString(fmt.Sprintf(`<title>%s &middot; rowview</title>`, html.EscapeString(title)))
	sb.WriteString(`<script src="https://cdn.tailwindcss.com"></script></head>`)
	sb.WriteString(`<body class="bg-gray-100"><div class="max-w-7xl mx-auto p-6">`)
	sb.WriteString(`<header class="flex gap-4 pb-4 text-sm"><a href="/admin/" class="font-semibold">rowview</a><a href="/admin/logs" class="text-blue-600">Request log</a></header>`)
	sb.WriteString(fmt.Sprintf(`<h1 class="text-xl font-semibold pb-2">%s</h1>`, html.EscapeString(title)))
	sb.WriteString(body)
	sb.WriteString(`</div></body></html>`)
	return sb.String()
}

func gridPath(name string) string {
	return "/admin/grids/" + url.PathEscape(name)
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func escape(s string) string {
	return html.EscapeString(s)
}
