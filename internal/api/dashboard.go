package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/repodash/repodash/pkg/logger"
	"github.com/repodash/repodash/pkg/types"
)

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>repodash</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.locked { color: #b00; font-weight: bold; }
.target { border: 1px solid #ccc; padding: 1rem; margin-bottom: 1rem; }
textarea { width: 100%; height: 12rem; font-family: monospace; }
</style>
</head>
<body>
<h1>repodash</h1>
{{if .Locked}}<p class="locked">System is locked. Edits are disabled.</p>{{end}}
{{range .Targets}}
<div class="target" data-key="{{.Key}}">
  <h2>{{.Name}}</h2>
  <p>{{.Repo}} / {{.FilePath}}</p>
  <textarea id="content-{{.Key}}"></textarea>
  <button onclick="saveTarget('{{.Key}}')" {{if $.Locked}}disabled{{end}}>Save</button>
  <button onclick="loadHistory('{{.Key}}')">History</button>
  <div id="history-{{.Key}}"></div>
</div>
{{end}}
<script>
const api = '/api/v1';
const versionTags = {};

async function loadTarget(key) {
  const resp = await fetch(api + '/targets/' + key);
  if (!resp.ok) return;
  const data = await resp.json();
  versionTags[key] = data.version_tag;
  document.getElementById('content-' + key).value = data.content;
}

async function saveTarget(key) {
  const content = document.getElementById('content-' + key).value;
  const resp = await fetch(api + '/targets/' + key, {
    method: 'PUT',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({content: content}),
  });
  if (resp.status === 409) {
    alert('This file changed while you were editing. Reloading.');
    loadTarget(key);
    return;
  }
  if (resp.status === 403) {
    alert('The system is locked by an administrator.');
    return;
  }
  if (!resp.ok) {
    alert('Save failed.');
    return;
  }
  const data = await resp.json();
  versionTags[key] = data.version_tag;
}

async function loadHistory(key) {
  const resp = await fetch(api + '/targets/' + key + '/history');
  if (!resp.ok) return;
  const entries = await resp.json();
  const el = document.getElementById('history-' + key);
  el.innerHTML = entries.map(e =>
    '<p>' + e.version_id.slice(0, 7) + ' - ' + e.message +
    ' <button onclick="restoreVersion(\'' + key + '\',\'' + e.version_id + '\')">Restore</button></p>'
  ).join('');
}

async function restoreVersion(key, version) {
  const resp = await fetch(api + '/targets/' + key + '/restore/' + version, {method: 'POST'});
  if (resp.ok) loadTarget(key);
}

const stream = new EventSource(api + '/events');
stream.addEventListener('fileUpdated', ev => {
  const data = JSON.parse(ev.data);
  loadTarget(data.targetKey);
});
stream.addEventListener('systemLocked', () => location.reload());
stream.addEventListener('systemUnlocked', () => location.reload());

document.querySelectorAll('.target').forEach(el => loadTarget(el.dataset.key));
</script>
</body>
</html>
`

// dashboardHandler renders the viewer page. Every page view is audited.
func (s *Server) dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.auditService.Record(types.AuditPageAccess, map[string]any{
			"ip":        c.ClientIP(),
			"userAgent": c.Request.UserAgent(),
		})

		data := struct {
			Targets []types.TargetDescriptor
			Locked  bool
		}{
			Targets: s.workflowService.Targets().All(),
			Locked:  s.lockService.Current(),
		}

		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/html; charset=utf-8")
		if err := s.dashboardTmpl.Execute(c.Writer, data); err != nil {
			s.log.Error("render dashboard", logger.Field{Key: "error", Value: err.Error()})
		}
	}
}
