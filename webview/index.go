// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package webview

// indexHTML is the single-page live view; it renders the latest snapshot
// pushed over the websocket stream, falling back to polling the JSON
// endpoint when websockets are unavailable.
const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>pinginfo</title>
<style>
body { font-family: ui-monospace, monospace; margin: 2em; background: #101418; color: #d0d7de; }
h1 { font-size: 1.2em; }
table { border-collapse: collapse; margin-top: 1em; }
th, td { text-align: left; padding: .3em 1.2em .3em 0; }
th { color: #8b949e; border-bottom: 1px solid #30363d; }
.reachable { color: #3fb950; }
.timeout { color: #d29922; }
.unreachable, .error { color: #f85149; }
#round { color: #8b949e; }
</style>
</head>
<body>
<h1>pinginfo <span id="round"></span></h1>
<table>
<thead><tr><th>Host</th><th>Status</th><th>Latency</th><th>Name</th></tr></thead>
<tbody id="rows"></tbody>
</table>
<script>
function fmtLatency(e) {
  if (e.status !== "reachable") { return "-"; }
  return (e.latency / 1e6).toFixed(1) + " ms";
}
function render(snapshot) {
  if (!snapshot) { return; }
  document.getElementById("round").textContent = "round " + snapshot.round;
  var rows = "";
  snapshot.entries.forEach(function (e) {
    rows += "<tr><td>" + e.host + "</td>" +
      "<td class=\"" + e.status + "\">" + e.status + "</td>" +
      "<td>" + fmtLatency(e) + "</td>" +
      "<td>" + (e.resolvedName || "-") + "</td></tr>";
  });
  document.getElementById("rows").innerHTML = rows;
}
function poll() {
  fetch("api/snapshot").then(function (r) { return r.json(); }).then(render);
}
try {
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(scheme + location.host + location.pathname.replace(/\/$/, "") + "/ws");
  ws.onmessage = function (ev) { render(JSON.parse(ev.data)); };
  ws.onerror = function () { setInterval(poll, 1000); };
} catch (e) {
  setInterval(poll, 1000);
}
</script>
</body>
</html>
`
