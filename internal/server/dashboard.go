package server

// DashboardHTML is the embedded single-page dashboard. Each limiter gets a
// row with its live budget (from /api/limiters) and the admissions seen on
// /ws since the page loaded.
const DashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>jobpacer</title>
<style>
  :root {
    --bg: #0f1115; --panel: #171a21; --line: #2a2f3a; --text: #d7dae0;
    --muted: #7d8590; --ok: #4cc38a; --bad: #e5534b; --wait: #d29922; --accent: #6cb6ff;
  }
  * { box-sizing: border-box; }
  body { margin: 0; padding: 24px; background: var(--bg); color: var(--text); font: 14px/1.4 ui-monospace, Menlo, Consolas, monospace; }
  header { display: flex; align-items: baseline; gap: 16px; margin-bottom: 18px; }
  header h1 { margin: 0; font-size: 20px; color: var(--accent); }
  #conn { font-size: 12px; padding: 2px 8px; border-radius: 10px; background: #3a1d1d; color: var(--bad); }
  #conn.up { background: #16301f; color: var(--ok); }
  #totals { margin-left: auto; color: var(--muted); font-size: 12px; }
  section { background: var(--panel); border: 1px solid var(--line); border-radius: 6px; margin-bottom: 18px; }
  section h2 { margin: 0; padding: 10px 14px; font-size: 13px; color: var(--muted); text-transform: uppercase; border-bottom: 1px solid var(--line); display: flex; justify-content: space-between; }
  table { width: 100%; border-collapse: collapse; }
  th, td { text-align: left; padding: 7px 14px; border-bottom: 1px solid var(--line); white-space: nowrap; }
  th { font-weight: normal; color: var(--muted); font-size: 12px; }
  td.num { text-align: right; }
  .bar { width: 160px; height: 8px; background: var(--line); border-radius: 4px; overflow: hidden; }
  .bar > div { height: 100%; background: var(--ok); }
  .bar.low > div { background: var(--wait); }
  .bar.empty > div { background: var(--bad); }
  .ok { color: var(--ok); } .bad { color: var(--bad); } .wait { color: var(--wait); } .dim { color: var(--muted); }
  #log { max-height: 420px; overflow-y: auto; }
  #log td { font-size: 12px; }
  button { background: transparent; color: var(--muted); border: 1px solid var(--line); border-radius: 4px; font: inherit; font-size: 11px; cursor: pointer; }
</style>
</head>
<body>
<header>
  <h1>jobpacer</h1>
  <span id="conn">offline</span>
  <span id="totals">0 admitted &middot; 0 denied &middot; 0 waited</span>
</header>

<section>
  <h2><span>Limiters</span><span id="refreshed"></span></h2>
  <table>
    <thead><tr><th>name</th><th>kind</th><th>budget</th><th></th><th class="num">admitted</th><th class="num">denied</th><th class="num">total wait</th></tr></thead>
    <tbody id="limiters"></tbody>
  </table>
</section>

<section>
  <h2><span>Admissions</span><button onclick="clearLog()">clear</button></h2>
  <div id="log">
    <table><tbody id="events"><tr><td class="dim">no admissions yet (POST /api/admit/{limiter})</td></tr></tbody></table>
  </div>
</section>

<script>
const LOG_LIMIT = 250;
const seen = {};      // limiter -> {admitted, denied, waitedNs}
let snaps = {};
let fresh = true;

function stats(name) {
  return seen[name] || (seen[name] = {admitted: 0, denied: 0, waitedNs: 0});
}

function esc(s) {
  const d = document.createElement('div');
  d.textContent = String(s);
  return d.innerHTML;
}

function ms(ns) {
  return ns >= 1e9 ? (ns / 1e9).toFixed(1) + 's' : Math.round(ns / 1e6) + 'ms';
}

function budget(s) {
  if (s.token_bucket) return [s.token_bucket.tokens_available, s.token_bucket.capacity, s.token_bucket.tokens_available.toFixed(2) + ' tokens'];
  if (s.sliding_window) { const w = s.sliding_window; return [w.max_requests - w.requests_in_window, w.max_requests, w.requests_in_window + ' in window']; }
  if (s.fixed_window) { const w = s.fixed_window; return [w.max_requests - w.request_count, w.max_requests, w.request_count + ' this window']; }
  return [0, 0, ''];
}

function render() {
  const names = Object.keys(Object.assign({}, snaps, seen)).sort();
  let admitted = 0, denied = 0, waited = 0;
  document.getElementById('limiters').innerHTML = names.map(name => {
    const st = stats(name);
    admitted += st.admitted; denied += st.denied; waited += st.waitedNs;
    const snap = snaps[name];
    let bar = '<span class="dim">unlimited</span>', label = '', kind = '-';
    if (snap) {
      const [left, cap, text] = budget(snap);
      const pct = cap > 0 ? Math.max(0, Math.min(100, left / cap * 100)) : 0;
      const cls = pct === 0 ? 'bar empty' : pct < 25 ? 'bar low' : 'bar';
      bar = '<div class="' + cls + '"><div style="width:' + pct + '%"></div></div>';
      label = esc(text);
      kind = esc(snap.type);
    }
    return '<tr><td>' + esc(name) + '</td><td class="dim">' + kind + '</td><td>' + bar + '</td><td class="dim">' + label + '</td>' +
      '<td class="num ok">' + st.admitted + '</td><td class="num bad">' + st.denied + '</td><td class="num wait">' + ms(st.waitedNs) + '</td></tr>';
  }).join('');
  document.getElementById('totals').textContent = admitted + ' admitted · ' + denied + ' denied · ' + ms(waited) + ' waited';
}

function logEvent(ev) {
  const tbody = document.getElementById('events');
  if (fresh) { tbody.innerHTML = ''; fresh = false; }
  const at = new Date(ev.at).toISOString().substring(11, 23);
  const verdict = ev.admitted ? '<span class="ok">admit</span>' : '<span class="bad">deny</span>';
  const extra = ev.error ? esc(ev.error) : (ev.waited ? 'waited ' + ms(ev.waited) : '');
  const row = document.createElement('tr');
  row.innerHTML = '<td class="dim">' + at + '</td><td>' + esc(ev.limiter) + '</td><td>' + verdict + '</td>' +
    '<td class="num">x' + ev.cost + '</td><td class="dim">' + (ev.wait ? 'wait' : 'fail-fast') + '</td><td class="wait">' + extra + '</td>';
  tbody.insertBefore(row, tbody.firstChild);
  while (tbody.children.length > LOG_LIMIT) tbody.removeChild(tbody.lastChild);
}

function clearLog() {
  fresh = true;
  document.getElementById('events').innerHTML = '<tr><td class="dim">cleared</td></tr>';
}

function connect() {
  const conn = document.getElementById('conn');
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onopen = () => { conn.textContent = 'live'; conn.className = 'up'; };
  ws.onclose = () => { conn.textContent = 'offline'; conn.className = ''; setTimeout(connect, 2000); };
  ws.onmessage = (m) => {
    const ev = JSON.parse(m.data);
    const st = stats(ev.limiter);
    if (ev.admitted) st.admitted++; else st.denied++;
    st.waitedNs += ev.waited || 0;
    logEvent(ev);
    render();
  };
}

async function poll() {
  try {
    const res = await fetch('/api/limiters');
    if (res.ok) {
      snaps = await res.json();
      document.getElementById('refreshed').textContent = new Date().toLocaleTimeString();
      render();
    }
  } catch (e) {}
}

connect();
poll();
setInterval(poll, 1000);
</script>
</body>
</html>`
