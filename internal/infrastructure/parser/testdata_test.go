package parser

import "strings"

var articleParagraphs = []string{
	"The harbour authority confirmed on Tuesday that the northern pier will reopen after a two-year restoration, bringing back ferry routes that islanders had relied on for decades.",
	"Engineers replaced more than four hundred timber piles, reinforced the deck with recycled steel, and installed lighting designed to protect nesting seabirds along the breakwater.",
	"Local businesses expect the first summer season to draw visitors back to the waterfront, although some residents worry about parking, noise, and the rising cost of moorings.",
	"The ferry operator said timetables would be published next month, with early crossings on weekdays and an extra evening sailing during the festival fortnight in August.",
	"Council officers will review the traffic plan in the autumn, after counting how many cars, bicycles, and coaches use the harbour road during the busiest weekends.",
}

func samplePage() string {
	var body strings.Builder
	for _, p := range articleParagraphs {
		body.WriteString("<p>" + p + "</p>\n")
	}

	return `<!DOCTYPE html>
<html>
<head>
  <title>Pier reopens | Coastal Times</title>
  <meta property="og:title" content="Northern pier reopens after restoration">
  <meta property="og:image" content="/images/pier.jpg">
  <style>body { color: red; }</style>
  <script>window.tracking = true;</script>
</head>
<body>
  <header><a href="/">Coastal Times</a></header>
  <nav>
    <ul>
      <li><a href="/news">News</a></li>
      <li><a href="/sport">Sport</a></li>
      <li><a href="/weather">Weather</a></li>
    </ul>
  </nav>
  <div class="layout">
    <article>
      <h1>Northern pier reopens</h1>
      ` + body.String() + `
      <ul class="tags"><li><a href="/t/harbour">harbour</a></li><li><a href="/t/ferries">ferries</a></li></ul>
    </article>
    <div class="sidebar">
      <h3>Most read</h3>
      <ul>
        <li><a href="/a">Council approves budget for new library wing</a></li>
        <li><a href="/b">Storm warning issued for the weekend</a></li>
      </ul>
    </div>
  </div>
  <footer>Copyright Coastal Times. <a href="/privacy">Privacy</a></footer>
</body>
</html>`
}
