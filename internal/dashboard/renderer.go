package dashboard

import (
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/rampantspark/gridwatch/internal/sysstats"
	"github.com/rampantspark/gridwatch/internal/trader"
	"github.com/rampantspark/gridwatch/internal/visitor"
)

const (
	placeholder = "--"
	noVisitors  = "No visitors yet."
)

// PageData is everything the dashboard page shows.
type PageData struct {
	Status      *trader.Status
	StatusError string
	System      *sysstats.Stats
	Visitors    []visitor.View // most recent first
	Log         string
	LogMissing  bool
	Nonce       string
}

// Renderer handles HTML generation for the dashboard.
type Renderer struct {
	loc *time.Location
}

// NewRenderer creates a new renderer that shows times in loc.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{loc: loc}
}

// RenderHome generates the complete dashboard HTML.
func (r *Renderer) RenderHome(data PageData) string {
	var sb strings.Builder

	r.writeHTMLHeader(&sb, data.Status)
	sb.WriteString("<div class=\"grid\">\n")
	r.writeStatusBox(&sb, data.Status, data.StatusError)
	r.writeSystemBox(&sb, data.System)
	sb.WriteString("</div>\n")
	r.writeTradesSection(&sb, data.Status)
	r.writeVisitorsSection(&sb, data.Visitors)
	r.writeLogSection(&sb, data.Log, data.LogMissing)
	r.writeLiveScript(&sb, data.Nonce)
	sb.WriteString("</body>\n</html>")

	return sb.String()
}

// writeHTMLHeader writes the HTML header, styles, and opening body tag.
func (r *Renderer) writeHTMLHeader(sb *strings.Builder, status *trader.Status) {
	title := "gridwatch"
	if status != nil && status.Symbol != "" {
		title = "gridwatch - " + status.Symbol
	}

	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	sb.WriteString("<title>" + html.EscapeString(title) + "</title>\n")
	sb.WriteString("<style>\n")
	sb.WriteString("body { font-family: monospace; margin: 20px; background: #f5f5f5; }\n")
	sb.WriteString("h1 { color: #333; }\n")
	sb.WriteString(".stat-box { background: white; padding: 15px; margin: 10px 0; border-radius: 5px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }\n")
	sb.WriteString(".grid { display: grid; grid-template-columns: 2fr 1fr; gap: 20px; }\n")
	sb.WriteString("@media (max-width: 768px) { .grid { grid-template-columns: 1fr; } }\n")
	sb.WriteString("table { width: 100%; border-collapse: collapse; margin-top: 10px; }\n")
	sb.WriteString("th, td { padding: 8px; text-align: left; border-bottom: 1px solid #ddd; }\n")
	sb.WriteString("th { background-color: #4CAF50; color: white; }\n")
	sb.WriteString(".profit { color: #16a34a; }\n")
	sb.WriteString(".loss { color: #dc2626; }\n")
	sb.WriteString(".log { max-height: 500px; overflow-y: auto; background: #1e1e1e; color: #ddd; padding: 10px; }\n")
	sb.WriteString("</style>\n")
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString("<h1>" + html.EscapeString(title) + "</h1>\n")
}

// writeStatusBox writes the trader status: prices, grid and funds.
func (r *Renderer) writeStatusBox(sb *strings.Builder, status *trader.Status, statusErr string) {
	sb.WriteString("<div class=\"stat-box\">\n")
	sb.WriteString("<h2>Trading Status</h2>\n")
	if status == nil {
		msg := "Trader status unavailable."
		if statusErr != "" {
			msg = "Trader status unavailable: " + statusErr
		}
		sb.WriteString("<p id=\"status-error\">" + html.EscapeString(msg) + "</p>\n")
		status = &trader.Status{LastTradeTimeStr: placeholder}
	}

	profitClass := "profit"
	if status.TotalProfit < 0 {
		profitClass = "loss"
	}

	writeField(sb, "Base price", "base-price", formatOptional(status.BasePrice, 2), "")
	writeField(sb, "Current price", "current-price", formatNonZero(status.CurrentPrice, 2), "")
	writeField(sb, "S1 daily high", "s1-high", formatOptional(status.S1DailyHigh, 2), "")
	writeField(sb, "S1 daily low", "s1-low", formatOptional(status.S1DailyLow, 2), "")
	writeField(sb, "Position", "position-percentage", formatFloat(status.PositionPercentage, 2)+"%", "")
	writeField(sb, "Grid size", "grid-size", formatPercent(status.GridSize), "")
	writeField(sb, "Grid upper band", "grid-upper-band", formatOptional(status.GridUpperBand, 2), "")
	writeField(sb, "Grid lower band", "grid-lower-band", formatOptional(status.GridLowerBand, 2), "")
	writeField(sb, "Threshold", "threshold", formatPercent(status.Threshold), "")
	writeField(sb, "Target order amount", "target-order-amount", formatNonZero(status.TargetOrderAmount, 2), "")
	writeField(sb, "Total assets", "total-assets", formatNonZero(status.TotalAssets, 2), "")
	writeField(sb, "Quote balance", "usdt-balance", formatFloat(status.QuoteBalance, 2), "")
	writeField(sb, "Base balance", "bnb-balance", formatFloat(status.BaseBalance, 4), "")
	writeField(sb, "Total profit", "total-profit", formatNonZero(status.TotalProfit, 2), profitClass)
	writeField(sb, "Profit rate", "profit-rate", withSuffix(formatNonZero(status.ProfitRate, 2), "%"), profitClass)
	writeField(sb, "Last trade", "last-trade-time", status.LastTradeTimeStr, "")
	sb.WriteString("</div>\n")
}

// writeSystemBox writes host CPU and memory usage.
func (r *Renderer) writeSystemBox(sb *strings.Builder, stats *sysstats.Stats) {
	sb.WriteString("<div class=\"stat-box\">\n")
	sb.WriteString("<h2>System</h2>\n")
	if stats == nil {
		sb.WriteString("<p>System stats unavailable.</p>\n")
		sb.WriteString("</div>\n")
		return
	}
	writeField(sb, "CPU", "cpu-percent", formatFloat(stats.CPUPercent, 1)+"%", "")
	writeField(sb, "Memory", "memory-percent", formatFloat(stats.MemoryPercent, 1)+"%", "")
	writeField(sb, "Memory used", "memory-used",
		formatFloat(stats.MemoryUsedGB, 2)+"GB / "+formatFloat(stats.MemoryTotalGB, 2)+"GB", "")
	sb.WriteString("</div>\n")
}

// writeTradesSection writes the recent trade history table.
func (r *Renderer) writeTradesSection(sb *strings.Builder, status *trader.Status) {
	sb.WriteString("<div class=\"stat-box\">\n")
	sb.WriteString("<h2>Recent Trades</h2>\n")
	sb.WriteString("<table>\n")
	sb.WriteString("<thead><tr><th>Time</th><th>Side</th><th>Price</th><th>Amount</th><th>Value</th></tr></thead>\n")
	sb.WriteString("<tbody id=\"trade-history\">\n")
	if status != nil {
		for _, t := range status.TradeHistory {
			sb.WriteString("<tr><td>")
			sb.WriteString(html.EscapeString(t.Timestamp))
			sb.WriteString("</td><td>")
			sb.WriteString(html.EscapeString(t.Side))
			sb.WriteString("</td><td>")
			sb.WriteString(formatFloat(t.Price, 2))
			sb.WriteString("</td><td>")
			sb.WriteString(formatFloat(t.Amount, 4))
			sb.WriteString("</td><td>")
			sb.WriteString(formatFloat(t.Price*t.Amount, 2))
			sb.WriteString("</td></tr>\n")
		}
	}
	sb.WriteString("</tbody>\n</table>\n")
	sb.WriteString("</div>\n")
}

// writeVisitorsSection writes the recent visitors table. The live script
// replaces the rows of #visitor-rows on every websocket frame.
func (r *Renderer) writeVisitorsSection(sb *strings.Builder, views []visitor.View) {
	sb.WriteString("<div class=\"stat-box\">\n")
	sb.WriteString("<h2>Recent Visitors</h2>\n")
	sb.WriteString("<table>\n")
	sb.WriteString("<thead><tr><th>Time</th><th>IP Address</th><th>Browser</th><th>Device</th><th>OS</th><th>Visits</th><th>First Visit</th><th>Path</th></tr></thead>\n")
	sb.WriteString("<tbody id=\"visitor-rows\">\n")
	if len(views) == 0 {
		sb.WriteString("<tr><td colspan=\"8\">" + noVisitors + "</td></tr>\n")
	}
	for _, v := range views {
		sb.WriteString("<tr><td>")
		sb.WriteString(html.EscapeString(v.LastSeenAt.In(r.loc).Format(trader.TimeLayout)))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(v.Address))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(strings.TrimSpace(string(v.Browser) + " " + v.BrowserVersion)))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(string(v.Device) + " (" + v.DeviceType + ")"))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(string(v.OS)))
		sb.WriteString("</td><td>")
		sb.WriteString(strconv.Itoa(v.VisitCount))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(v.FirstVisitAt.In(r.loc).Format(trader.TimeLayout)))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(v.Path))
		sb.WriteString("</td></tr>\n")
	}
	sb.WriteString("</tbody>\n</table>\n")
	sb.WriteString("</div>\n")
}

// writeLogSection writes the reversed trade log.
func (r *Renderer) writeLogSection(sb *strings.Builder, log string, missing bool) {
	sb.WriteString("<div class=\"stat-box\">\n")
	sb.WriteString("<h2>Trade Log</h2>\n")
	if missing {
		sb.WriteString("<p>Log file not found.</p>\n")
	}
	sb.WriteString("<pre class=\"log\" id=\"log-content\">")
	sb.WriteString(html.EscapeString(log))
	sb.WriteString("</pre>\n")
	sb.WriteString("</div>\n")
}

// writeLiveScript writes the script that keeps the page current over the
// websocket, falling back to polling the JSON API.
func (r *Renderer) writeLiveScript(sb *strings.Builder, nonce string) {
	sb.WriteString("<script")
	if nonce != "" {
		sb.WriteString(" nonce=\"" + html.EscapeString(nonce) + "\"")
	}
	sb.WriteString(">\n")
	sb.WriteString(`const fmt = (v, d, suffix) => (v === null || v === undefined) ? '--' : v.toFixed(d) + (suffix || '');
const nz = (v, d, suffix) => v ? v.toFixed(d) + (suffix || '') : '--';
const set = (id, text, cls) => {
  const el = document.getElementById(id);
  if (!el) return;
  el.textContent = text;
  if (cls) el.className = cls;
};

function applyStatus(s) {
  if (!s) return;
  set('base-price', fmt(s.base_price, 2));
  set('current-price', nz(s.current_price, 2));
  set('s1-high', fmt(s.s1_daily_high, 2));
  set('s1-low', fmt(s.s1_daily_low, 2));
  set('position-percentage', fmt(s.position_percentage, 2, '%'));
  set('grid-size', s.grid_size ? (s.grid_size * 100).toFixed(2) + '%' : '--');
  set('grid-upper-band', fmt(s.grid_upper_band, 2));
  set('grid-lower-band', fmt(s.grid_lower_band, 2));
  set('threshold', s.threshold ? (s.threshold * 100).toFixed(2) + '%' : '--');
  set('target-order-amount', nz(s.target_order_amount, 2));
  set('total-assets', nz(s.total_assets, 2));
  set('usdt-balance', fmt(s.usdt_balance, 2));
  set('bnb-balance', fmt(s.bnb_balance, 4));
  const cls = s.total_profit >= 0 ? 'profit' : 'loss';
  set('total-profit', nz(s.total_profit, 2), cls);
  set('profit-rate', nz(s.profit_rate, 2, '%'), cls);
  set('last-trade-time', s.last_trade_time_str);
  const body = document.getElementById('trade-history');
  if (body) {
    body.replaceChildren(...(s.trade_history || []).map(t => {
      const tr = document.createElement('tr');
      [t.timestamp, t.side, t.price.toFixed(2), t.amount.toFixed(4), (t.price * t.amount).toFixed(2)].forEach(v => {
        const td = document.createElement('td');
        td.textContent = v;
        tr.appendChild(td);
      });
      return tr;
    }));
  }
}

function applySystem(sys) {
  if (!sys) return;
  set('cpu-percent', sys.cpu_percent.toFixed(1) + '%');
  set('memory-percent', sys.memory_percent.toFixed(1) + '%');
  set('memory-used', sys.memory_used.toFixed(2) + 'GB / ' + sys.memory_total.toFixed(2) + 'GB');
}

const pad = (n) => String(n).padStart(2, '0');
const stamp = (iso) => {
  const d = new Date(iso);
  if (isNaN(d)) return '--';
  return d.getFullYear() + '-' + pad(d.getMonth() + 1) + '-' + pad(d.getDate()) + ' ' +
    pad(d.getHours()) + ':' + pad(d.getMinutes()) + ':' + pad(d.getSeconds());
};

function applyVisitors(visitors) {
  if (!Array.isArray(visitors)) return;
  const body = document.getElementById('visitor-rows');
  if (!body) return;
  const row = (cells) => {
    const tr = document.createElement('tr');
    cells.forEach(v => {
      const td = document.createElement('td');
      td.textContent = v;
      tr.appendChild(td);
    });
    return tr;
  };
  if (visitors.length === 0) {
    const tr = row(['No visitors yet.']);
    tr.firstChild.colSpan = 8;
    body.replaceChildren(tr);
    return;
  }
  body.replaceChildren(...visitors.map(v => row([
    stamp(v.time),
    v.ip,
    (v.browser + ' ' + (v.browser_version || '')).trim(),
    v.device + ' (' + v.device_type + ')',
    v.os,
    String(v.visit_count),
    stamp(v.first_visit),
    v.path,
  ])));
}

async function poll() {
  try {
    const res = await fetch('/api/status');
    if (res.ok) applyStatus(await res.json());
  } catch (e) {
    console.error('status update failed', e);
  }
}

let etag = '';
async function pollLog() {
  try {
    const res = await fetch('/api/logs', { headers: etag ? { 'If-None-Match': etag } : {} });
    if (res.status === 200) {
      etag = res.headers.get('ETag') || '';
      set('log-content', await res.text());
    }
  } catch (e) {
    console.error('log update failed', e);
  }
}

function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onmessage = (ev) => {
    const frame = JSON.parse(ev.data);
    applyStatus(frame.status);
    applySystem(frame.system);
    applyVisitors(frame.visitors);
  };
  ws.onclose = () => {
    setTimeout(connect, 5000);
  };
}

if ('WebSocket' in window) {
  connect();
} else {
  setInterval(poll, 2000);
}
setInterval(pollLog, 2000);
</script>
`)
}

func writeField(sb *strings.Builder, label, id, value, class string) {
	sb.WriteString("<p><strong>" + html.EscapeString(label) + ":</strong> <span id=\"" + id + "\"")
	if class != "" {
		sb.WriteString(" class=\"" + class + "\"")
	}
	sb.WriteString(">" + html.EscapeString(value) + "</span></p>\n")
}

func formatFloat(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func formatOptional(v *float64, decimals int) string {
	if v == nil {
		return placeholder
	}
	return formatFloat(*v, decimals)
}

// formatNonZero shows zero as a placeholder, like the live script does.
func formatNonZero(v float64, decimals int) string {
	if v == 0 {
		return placeholder
	}
	return formatFloat(v, decimals)
}

func withSuffix(value, suffix string) string {
	if value == placeholder {
		return value
	}
	return value + suffix
}

func formatPercent(fraction float64) string {
	if fraction == 0 {
		return placeholder
	}
	return formatFloat(fraction*100, 2) + "%"
}
