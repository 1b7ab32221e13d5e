package render

// pageTemplateString 是页面与各内容块模板的全集。
// 块模板按"模式-类型"命名，由注册表查找；页面骨架在两种模式间共享。
const pageTemplateString = `
{{define "page"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { margin: 0; font-family: system-ui, sans-serif; }
        .page root { display: block; }
        .page {
            min-height: 100vh;
            padding: 48px 16px;
            box-sizing: border-box;
        }
        .page-inner { max-width: 640px; margin: 0 auto; }
        .block { margin-bottom: 24px; }
        .block-text { white-space: pre-wrap; line-height: 1.6; }
        .block-image img { max-width: 100%; border-radius: 8px; display: block; }
        .block-link a {
            display: block;
            padding: 14px 18px;
            border: 1px solid #d0d0d0;
            border-radius: 10px;
            text-decoration: none;
            color: inherit;
            text-align: center;
            background: rgba(255,255,255,0.85);
        }
        .block-card {
            padding: 20px;
            border-radius: 12px;
            background: rgba(255,255,255,0.9);
        }
        .block-card .card-name { font-size: 1.3em; font-weight: 600; }
        .block-card .card-row { margin-top: 4px; color: #444; }
        .block-card img.card-photo {
            width: 72px; height: 72px; border-radius: 50%;
            object-fit: cover; float: right;
        }
        .placeholder {
            text-align: center;
            color: #888;
            padding: 120px 0;
        }
        .edit-wrap { position: relative; border: 1px dashed transparent; }
        .edit-wrap:hover { border-color: #3388ff; }
        .edit-toolbar { position: absolute; top: -14px; right: 0; font-size: 12px; }
        .edit-toolbar button { margin-left: 4px; }
    </style>
</head>
<body>
    <div class="page" style="{{.BackgroundCSS}}">
        <div class="page-inner"{{if .Editable}} data-editor="1"{{end}}>
            {{if .Blocks}}
                {{range .Blocks}}{{.}}{{end}}
            {{else}}
                {{template "placeholder" .}}
            {{end}}
        </div>
    </div>
</body>
</html>{{end}}

{{define "placeholder"}}<div class="placeholder">还没有内容</div>{{end}}

{{define "public-text"}}<div class="block block-text">{{field .Content "text"}}</div>{{end}}

{{define "public-image"}}{{with field .Content "src"}}<div class="block block-image"><img src="{{. | safeURL}}" alt="{{field $.Content "alt"}}"></div>{{end}}{{end}}

{{define "public-link"}}{{with field .Content "url"}}<div class="block block-link"><a href="{{. | safeURL}}" target="_blank" rel="noopener noreferrer">{{with field $.Content "label"}}{{.}}{{else}}{{field $.Content "url"}}{{end}}</a></div>{{end}}{{end}}

{{define "public-card"}}<div class="block block-card">
    {{with field .Content "photoURL"}}<img class="card-photo" src="{{. | safeURL}}" alt="">{{end}}
    <div class="card-name">{{field .Content "name"}}</div>
    {{with field .Content "position"}}<div class="card-row">{{.}}{{with field $.Content "company"}} · {{.}}{{end}}</div>{{end}}
    {{with field .Content "email"}}<div class="card-row"><a href="mailto:{{.}}">{{.}}</a></div>{{end}}
    {{with field .Content "phone"}}<div class="card-row">{{.}}</div>{{end}}
    {{with field .Content "website"}}<div class="card-row"><a href="{{. | safeURL}}" target="_blank" rel="noopener noreferrer">{{.}}</a></div>{{end}}
    {{with field .Content "bio"}}<div class="card-row">{{.}}</div>{{end}}
</div>{{end}}

{{define "edit-text"}}<div class="block edit-wrap" data-block-id="{{.ID}}" data-block-type="text" draggable="true">
    {{template "edit-toolbar" .}}
    <div class="block-text" contenteditable="true">{{field .Content "text"}}</div>
</div>{{end}}

{{define "edit-image"}}<div class="block edit-wrap" data-block-id="{{.ID}}" data-block-type="image" draggable="true">
    {{template "edit-toolbar" .}}
    {{with field .Content "src"}}<div class="block-image"><img src="{{. | safeURL}}" alt="{{field $.Content "alt"}}"></div>{{else}}<div class="placeholder">选择图片</div>{{end}}
</div>{{end}}

{{define "edit-link"}}<div class="block edit-wrap" data-block-id="{{.ID}}" data-block-type="link" draggable="true">
    {{template "edit-toolbar" .}}
    <input type="url" name="url" value="{{field .Content "url"}}" placeholder="https://">
    <input type="text" name="label" value="{{field .Content "label"}}" placeholder="链接文字">
</div>{{end}}

{{define "edit-card"}}<div class="block edit-wrap block-card" data-block-id="{{.ID}}" data-block-type="profile-card" draggable="true">
    {{template "edit-toolbar" .}}
    <div class="card-name" contenteditable="true">{{field .Content "name"}}</div>
    <input type="email" name="email" value="{{field .Content "email"}}" placeholder="email">
    <input type="tel" name="phone" value="{{field .Content "phone"}}" placeholder="phone">
    <textarea name="bio" placeholder="bio">{{field .Content "bio"}}</textarea>
</div>{{end}}

{{define "edit-toolbar"}}<div class="edit-toolbar">
    <span class="drag-handle" title="拖动排序">⠿</span>
    <button type="button" data-action="delete" data-block-id="{{.ID}}">删除</button>
</div>{{end}}
`
