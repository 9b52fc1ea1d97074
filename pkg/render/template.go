package render

import "html/template"

var readerTemplate = template.Must(template.New("reader").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{- if .BaseHref}}
<base href="{{.BaseHref}}">
{{- end}}
<title>{{.Title}}</title>
<style>
{{.CSS}}
</style>
</head>
<body>
<div id="__reader_container">
{{- if .ExitHref}}
<a id="__reader_exit" href="{{.ExitHref}}">View original</a>
{{- end}}
<header>
<h1 id="__reader_title">{{.Title}}</h1>
{{- if or .Author .Date .SiteName}}
<p id="__reader_byline">
{{- if .Author}}<span class="author">{{.Author}}</span>{{end}}
{{- if and .Author .Date}} &middot; {{end}}
{{- if .Date}}<time datetime="{{.DateISO}}">{{.Date}}</time>{{end}}
{{- if and .SiteName (or .Author .Date)}} &middot; {{end}}
{{- if .SiteName}}<span class="site">{{.SiteName}}</span>{{end}}
</p>
{{- end}}
{{- if .ReadingTime}}
<p id="__reader_meta">{{.ReadingTime}}</p>
{{- end}}
</header>
{{- if .HeroImage}}
<img id="__reader_hero" src="{{.HeroImage}}" alt="">
{{- end}}
<article id="__reader_content">
{{.Body}}
</article>
</div>
</body>
</html>
`))

const baseCSS = `html, body { margin: 0; padding: 0; }
body { color: var(--fg); background: var(--bg); font-family: var(--font); font-size: var(--size); line-height: 1.55; }
#__reader_container { max-width: 700px; margin: 0 auto; padding: 2.5em 1.2em 4em; }
#__reader_exit { display: inline-block; margin-bottom: 1.5em; font-size: 0.8em; }
#__reader_title { font-size: 1.8em; line-height: 1.2; margin: 0 0 0.4em; }
#__reader_byline, #__reader_meta { opacity: 0.7; font-size: 0.85em; margin: 0.2em 0; }
#__reader_hero { display: block; width: 100%; height: auto; margin: 1.5em 0; border-radius: 4px; }
a { color: var(--link); }
img, video, figure { max-width: 100%; height: auto; }
pre { overflow-x: auto; }
blockquote { margin-left: 0; padding-left: 1em; border-left: 3px solid var(--link); opacity: 0.9; }
`
