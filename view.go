package main

import (
	"html/template"
	"net/http"
)

func serveIndex(w http.ResponseWriter, name string, loggedIn bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTmpl.Execute(w, struct {
		Name     string
		LoggedIn bool
	}{Name: name, LoggedIn: loggedIn})
}

var indexTmpl = template.Must(template.New("edgechat").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Name}}</title>
  <style>
    :root{
      --bg:#0d1117; --panel:#111827; --border:#1f2937; --fg:#e5e7eb;
      --muted:#9ca3af; --accent:#3b82f6; --me:#2563eb; --other:#1f2937;
    }
    body.light{
      --bg:#f9fafb; --panel:#ffffff; --border:#e5e7eb; --fg:#111827;
      --muted:#6b7280; --me:#2563eb; --other:#ffffff;
    }
    *{ box-sizing:border-box }
    body{ margin:0; height:100vh; background:var(--bg); color:var(--fg);
      font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Helvetica, Arial }
    .layout{ display:flex; height:100vh }
    .sidebar{ width:280px; border-right:1px solid var(--border); background:var(--panel);
      display:flex; flex-direction:column; overflow:hidden }
    .sidebar h1{ font-size:18px; margin:0; padding:16px; border-bottom:1px solid var(--border) }
    .sidebar .section{ padding:10px 16px; font-size:11px; letter-spacing:.08em;
      text-transform:uppercase; color:var(--muted); display:flex; justify-content:space-between; align-items:center }
    .sidebar .lists{ flex:1; overflow-y:auto }
    .sidebar button.add{ background:none; border:1px solid var(--border); color:var(--fg);
      border-radius:6px; cursor:pointer; padding:2px 8px }
    .item{ display:block; width:100%; text-align:left; padding:10px 16px; border:none;
      background:none; color:var(--fg); cursor:pointer; font-size:14px;
      overflow:hidden; text-overflow:ellipsis; white-space:nowrap }
    .item:hover{ background:rgba(59,130,246,.12) }
    .item.active{ background:rgba(59,130,246,.22); color:var(--accent) }
    .main{ flex:1; display:flex; flex-direction:column; min-width:0 }
    .header{ height:56px; border-bottom:1px solid var(--border); background:var(--panel);
      display:flex; align-items:center; gap:10px; padding:0 16px }
    .header h2{ font-size:16px; margin:0; flex:1; overflow:hidden; text-overflow:ellipsis; white-space:nowrap }
    .header input{ flex:1; background:var(--bg); color:var(--fg); border:1px solid var(--border);
      border-radius:6px; padding:6px 10px }
    .header button, .promptline button, .modal button{ background:var(--accent); color:#fff; border:none;
      border-radius:6px; padding:6px 12px; cursor:pointer; font-size:13px }
    .header button.ghost, .modal button.ghost{ background:none; border:1px solid var(--border); color:var(--fg) }
    #log{ flex:1; overflow-y:auto; padding:16px; display:flex; flex-direction:column; gap:8px }
    .bubble{ max-width:70%; padding:8px 12px; border-radius:14px; font-size:14px;
      white-space:pre-wrap; word-break:break-word }
    .bubble .ts{ display:block; font-size:10px; color:var(--muted); text-align:right; margin-top:4px }
    .bubble img{ max-width:100%; max-height:240px; border-radius:8px; display:block; margin-top:6px }
    .bubble a{ color:inherit }
    .mine{ align-self:flex-end; background:var(--me); color:#fff }
    .mine .ts{ color:rgba(255,255,255,.7) }
    .theirs{ align-self:flex-start; background:var(--other); border:1px solid var(--border) }
    .who{ font-size:10px; color:var(--muted); align-self:flex-start; margin:-4px 0 0 6px }
    .promptline{ display:flex; gap:8px; padding:12px 16px; border-top:1px solid var(--border); background:var(--panel) }
    .promptline textarea{ flex:1; resize:none; background:var(--bg); color:var(--fg);
      border:1px solid var(--border); border-radius:10px; padding:10px; font:inherit; font-size:14px; height:42px }
    .attach-pill{ font-size:12px; color:var(--muted); padding:0 16px 8px; display:none }
    .empty{ flex:1; display:flex; align-items:center; justify-content:center; color:var(--muted) }
    .modal-back{ position:fixed; inset:0; background:rgba(0,0,0,.6); display:none;
      align-items:center; justify-content:center; z-index:40 }
    .modal{ width:360px; background:var(--panel); border:1px solid var(--border);
      border-radius:12px; padding:20px; display:flex; flex-direction:column; gap:12px }
    .modal h3{ margin:0; font-size:16px }
    .modal input{ background:var(--bg); color:var(--fg); border:1px solid var(--border);
      border-radius:6px; padding:8px 10px }
    .modal .row{ display:flex; gap:8px; justify-content:flex-end }
    #login{ margin:auto; display:flex; flex-direction:column; gap:10px; width:320px }
    #login input{ background:var(--panel); color:var(--fg); border:1px solid var(--border);
      border-radius:8px; padding:10px }
    #toast{ position:fixed; bottom:18px; left:50%; transform:translateX(-50%);
      background:#7f1d1d; color:#fff; padding:8px 16px; border-radius:8px; font-size:13px;
      display:none; z-index:50 }
    .topbtns{ display:flex; gap:6px; padding:12px 16px; border-top:1px solid var(--border) }
    .topbtns a, .topbtns button{ flex:1; text-align:center; background:none; border:1px solid var(--border);
      color:var(--muted); border-radius:6px; padding:6px; font-size:12px; cursor:pointer; text-decoration:none }
  </style>
</head>
<body>
  <div id="toast"></div>

  <div id="login-wrap" class="layout" style="display:none">
    <form id="login">
      <h1>{{.Name}}</h1>
      <input id="l-user" placeholder="username" autocomplete="username" />
      <input id="l-pass" type="password" placeholder="password" autocomplete="current-password" />
      <button type="submit">Sign in</button>
      <button type="button" id="l-reg" class="ghost" style="background:none;border:1px solid var(--border);color:var(--fg)">Register</button>
    </form>
  </div>

  <div id="chat-wrap" class="layout" style="display:none">
    <div class="sidebar">
      <h1>{{.Name}}</h1>
      <div class="lists">
        <div class="section">Rooms <button class="add" id="new-chat" title="New chat">+</button></div>
        <div id="rooms"></div>
        <div class="section">People</div>
        <div id="users"></div>
      </div>
      <div class="topbtns">
        <button id="theme">theme</button>
        <a href="/export" download>export</a>
      </div>
    </div>
    <div class="main">
      <div class="header" id="header" style="display:none">
        <h2 id="room-label"></h2>
        <input id="rename-input" style="display:none" placeholder="Room name" />
        <button id="rename-save" style="display:none">Save</button>
        <button id="rename-cancel" class="ghost" style="display:none">Cancel</button>
        <button id="rename-edit" class="ghost">Rename</button>
      </div>
      <div class="empty" id="empty">Select a person or room to start the conversation.</div>
      <div id="log" style="display:none"></div>
      <div class="attach-pill" id="attach-pill"></div>
      <div class="promptline" id="prompt" style="display:none">
        <button class="ghost" id="attach-btn" style="background:none;border:1px solid var(--border);color:var(--fg)">📎</button>
        <input type="file" id="attach" style="display:none" />
        <textarea id="text" placeholder="Type a message…" enterkeyhint="send"></textarea>
        <button id="send">Send</button>
      </div>
    </div>
  </div>

  <div class="modal-back" id="pick-back">
    <div class="modal">
      <h3>Start a chat</h3>
      <div id="pick-users"></div>
      <div class="row"><button class="ghost" id="pick-cancel">Cancel</button></div>
    </div>
  </div>
  <div class="modal-back" id="name-back">
    <div class="modal">
      <h3>Name your chat room</h3>
      <p id="name-hint" style="margin:0;font-size:13px;color:var(--muted)"></p>
      <input id="name-input" placeholder="Room name (optional)" />
      <div class="row">
        <button class="ghost" id="name-cancel">Cancel</button>
        <button id="name-ok">Create</button>
      </div>
    </div>
  </div>

  <script>
    let loggedIn = {{.LoggedIn}};
    let ws = null;
    let state = null;
    let renderedSig = "";
    let pendingAttach = null;

    const $ = id => document.getElementById(id);
    const esc = s => (s||'').replace(/[&<>"]/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]));

    // Theme preference lives in the browser only.
    if (localStorage.getItem('theme') === 'light') document.body.classList.add('light');
    $('theme').addEventListener('click', () => {
      document.body.classList.toggle('light');
      localStorage.setItem('theme', document.body.classList.contains('light') ? 'light' : 'dark');
    });

    function toast(msg){
      const t = $('toast');
      t.textContent = msg;
      t.style.display = 'block';
      setTimeout(() => { t.style.display = 'none'; }, 4000);
    }

    function gesture(g){ if (ws && ws.readyState === 1) ws.send(JSON.stringify(g)); }

    function connect(){
      $('login-wrap').style.display = 'none';
      $('chat-wrap').style.display = 'flex';
      const proto = location.protocol === 'https:' ? 'wss' : 'ws';
      ws = new WebSocket(proto + '://' + location.host + '/ws');
      ws.onmessage = e => {
        let f; try { f = JSON.parse(e.data); } catch(_) { return; }
        if (f.type === 'state') { state = f; render(); }
        else if (f.type === 'error') { toast(f.op + ': ' + f.message); }
        else if (f.type === 'ok') { onAck(f.op); }
      };
      ws.onclose = () => setTimeout(connect, 1500);
    }

    function onAck(op){
      if (op === 'send'){
        $('text').value = '';
        pendingAttach = null;
        $('attach').value = '';
        $('attach-pill').style.display = 'none';
        $('text').focus();
      } else if (op === 'rename'){
        stopRename();
      }
    }

    function render(){
      const s = state;
      // Sidebar
      $('rooms').innerHTML = s.rooms.map(r =>
        '<button class="item' + (r.id === s.active_room ? ' active' : '') + '" data-room="' + r.id + '">' +
        esc(r.label) + '</button>').join('');
      document.querySelectorAll('#rooms .item').forEach(b =>
        b.addEventListener('click', () => gesture({op:'select_room', room: parseInt(b.dataset.room, 10)})));
      $('users').innerHTML = s.users.map(u =>
        '<button class="item" data-user="' + u.id + '">' + esc(u.username) + '</button>').join('');
      document.querySelectorAll('#users .item').forEach(b =>
        b.addEventListener('click', () => gesture({op:'pick_user', user: parseInt(b.dataset.user, 10)})));

      // Creation modals
      $('pick-back').style.display = s.creation === 'picking' ? 'flex' : 'none';
      if (s.creation === 'picking'){
        $('pick-users').innerHTML = s.users.map(u =>
          '<button class="item" data-user="' + u.id + '">' + esc(u.username) + '</button>').join('');
        document.querySelectorAll('#pick-users .item').forEach(b =>
          b.addEventListener('click', () => gesture({op:'pick_user', user: parseInt(b.dataset.user, 10)})));
      }
      const naming = s.creation === 'naming';
      const wasNaming = $('name-back').style.display === 'flex';
      $('name-back').style.display = naming ? 'flex' : 'none';
      if (naming && !wasNaming){
        $('name-input').value = '';
        $('name-hint').textContent = s.draft_user ?
          'Leave empty to name the room "' + s.draft_user.username + '"' : '';
        $('name-input').focus();
      }

      // Main pane
      const active = s.active_room !== 0;
      $('header').style.display = active ? 'flex' : 'none';
      $('empty').style.display = active ? 'none' : 'flex';
      $('log').style.display = active ? 'flex' : 'none';
      $('prompt').style.display = active ? 'flex' : 'none';
      $('room-label').textContent = s.active_label;
      $('send').disabled = s.sending;

      if (active){
        const last = s.messages.length ? s.messages[s.messages.length-1].id : 0;
        const sig = s.active_room + '#' + s.messages.length + '#' + last;
        if (sig !== renderedSig){
          renderedSig = sig;
          $('log').innerHTML = s.messages.map(m => {
            let body = '<div class="bubble ' + (m.is_me ? 'mine' : 'theirs') + '">' + esc(m.content);
            if (m.image) body += '<img src="' + esc(m.image) + '" alt="attachment" />';
            if (m.file) body += '<div><a href="' + esc(m.file) + '" target="_blank" rel="noopener noreferrer">Download file</a></div>';
            body += '<span class="ts">' + new Date(m.timestamp).toLocaleTimeString([], {hour:'2-digit', minute:'2-digit'}) + '</span></div>';
            if (!m.is_me && m.sender) body += '<span class="who">' + esc(m.sender) + '</span>';
            return body;
          }).join('');
        }
      } else {
        renderedSig = '';
      }

      // Scroll directive from the engine
      const log = $('log');
      if (s.scroll === 'instant'){
        log.scrollTop = log.scrollHeight;
      } else if (s.scroll === 'smooth'){
        setTimeout(() => log.scrollTo({top: log.scrollHeight, behavior: 'smooth'}), s.scroll_delay_ms);
      }
    }

    // Report reader position so the engine can decide auto-follow.
    let scrollTimer = null;
    $('log').addEventListener('scroll', () => {
      if (scrollTimer) return;
      scrollTimer = setTimeout(() => {
        scrollTimer = null;
        const log = $('log');
        gesture({op:'scroll', distance: log.scrollHeight - log.scrollTop - log.clientHeight});
      }, 100);
    });

    // Composer
    function doSend(){
      const text = $('text').value;
      const g = {op:'send', text: text};
      if (pendingAttach) g.attach = pendingAttach;
      gesture(g);
    }
    $('send').addEventListener('click', doSend);
    $('text').addEventListener('keydown', e => {
      if (e.isComposing || e.keyCode === 229) return;
      if (e.key === 'Enter' && !e.shiftKey){ e.preventDefault(); doSend(); }
    });
    $('attach-btn').addEventListener('click', () => $('attach').click());
    $('attach').addEventListener('change', e => {
      const f = e.target.files && e.target.files[0];
      if (!f) return;
      const rd = new FileReader();
      rd.onload = () => {
        pendingAttach = {name: f.name, content_type: f.type || 'application/octet-stream',
          data: rd.result.split(',')[1]};
        const pill = $('attach-pill');
        pill.textContent = '📎 ' + f.name;
        pill.style.display = 'block';
      };
      rd.readAsDataURL(f);
    });

    // Rename controls: edit mode closes only after the backend confirms.
    function startRename(){
      $('room-label').style.display = 'none';
      $('rename-edit').style.display = 'none';
      $('rename-input').style.display = 'block';
      $('rename-save').style.display = 'block';
      $('rename-cancel').style.display = 'block';
      $('rename-input').value = '';
      $('rename-input').focus();
    }
    function stopRename(){
      $('room-label').style.display = 'block';
      $('rename-edit').style.display = 'block';
      $('rename-input').style.display = 'none';
      $('rename-save').style.display = 'none';
      $('rename-cancel').style.display = 'none';
    }
    $('rename-edit').addEventListener('click', startRename);
    $('rename-cancel').addEventListener('click', stopRename);
    $('rename-save').addEventListener('click', () =>
      gesture({op:'rename', room: state.active_room, name: $('rename-input').value.trim()}));

    // Creation workflow
    $('new-chat').addEventListener('click', () => gesture({op:'begin_create'}));
    $('pick-cancel').addEventListener('click', () => gesture({op:'cancel_create'}));
    $('name-cancel').addEventListener('click', () => gesture({op:'cancel_create'}));
    $('name-ok').addEventListener('click', () => gesture({op:'confirm_create', name: $('name-input').value.trim()}));
    $('name-input').addEventListener('keydown', e => {
      if (e.key === 'Enter') gesture({op:'confirm_create', name: $('name-input').value.trim()});
    });

    // Login
    $('login').addEventListener('submit', async e => {
      e.preventDefault();
      const res = await fetch('/login', {method:'POST', headers:{'Content-Type':'application/json'},
        body: JSON.stringify({username: $('l-user').value, password: $('l-pass').value})});
      if (!res.ok){ toast('login failed'); return; }
      connect();
    });
    $('l-reg').addEventListener('click', async () => {
      const pass = $('l-pass').value;
      const res = await fetch('/register', {method:'POST', headers:{'Content-Type':'application/json'},
        body: JSON.stringify({username: $('l-user').value, email:'', password: pass, confirm_password: pass})});
      toast(res.ok ? 'registered — sign in now' : 'register failed');
    });

    if (loggedIn) connect(); else $('login-wrap').style.display = 'flex';
  </script>
</body>
</html>`))
