package render

const attributionTableHTML = `<table class="ga4revenue-table">
  <thead>
    <tr>
      <th>Source / Medium</th>
      <th>Visitors</th>
      <th>Revenue</th>
      <th>% of Revenue</th>
      <th>{{if .BasicMetrics}}Transactions{{else}}Purchasers{{end}}</th>
      <th>Rev/Visitor</th>
      <th>Visitor→Paid %</th>
      {{- if not .BasicMetrics}}
      <th>Avg Order</th>
      {{- end}}
    </tr>
  </thead>
  <tbody>
  {{- range .Rows}}
    <tr{{if not .Qualified}} class="unqualified"{{end}}>
      <td><span class="source-icon">{{.Channel.Icon}}</span> {{.Source}} / {{.Medium}}</td>
      <td>{{count .Visitors}}</td>
      <td>{{money .Revenue}}</td>
      <td>
        <div class="revenue-bar-container">
          <div class="revenue-bar"><div class="revenue-bar-fill" style="width: {{bar .RevenueShare}}%;"></div></div>
          <span class="revenue-percentage">{{share .RevenueShare}}</span>
        </div>
      </td>
      <td>{{.Purchasers}}</td>
      <td>{{money .RevenuePerVisitor}}{{with .RevenuePerVisitorClass}} <span class="perf-indicator {{.CSSClass}}"></span>{{end}}</td>
      <td>{{percent .ConversionRate}}{{with .ConversionClass}} <span class="perf-indicator {{.CSSClass}}"></span>{{end}}</td>
      {{- if not $.BasicMetrics}}
      <td>{{money .AverageOrderValue}}</td>
      {{- end}}
    </tr>
  {{- else}}
    <tr>
      <td colspan="{{.Columns}}" class="empty">No revenue data found for the selected period.</td>
    </tr>
  {{- end}}
  {{- if .ShowTotal}}
    <tr class="total-row">
      <td><span class="source-icon">📊</span> Total</td>
      <td>{{count .Totals.Visitors}}</td>
      <td>{{money .Totals.Revenue}}</td>
      <td>100.0%</td>
      <td>{{.Totals.Purchasers}}</td>
      <td>{{money .Totals.RevenuePerVisitor}}</td>
      <td>{{percent .Totals.ConversionRate}}</td>
      {{- if not .BasicMetrics}}
      <td>{{money .Totals.AverageOrderValue}}</td>
      {{- end}}
    </tr>
  {{- end}}
  </tbody>
</table>
<div class="ga4revenue-legend">
  <p><strong>Visual Indicators:</strong></p>
  <ul>
    <li><strong>Icons:</strong> 🔍 Organic | 💰 Paid | 📱 Social | ✉️ Email | 🔗 Referral | 🎯 Direct</li>
    <li><strong>Performance Dots:</strong>
      <span class="perf-indicator perf-high"></span> Above Average |
      <span class="perf-indicator perf-medium"></span> Average |
      <span class="perf-indicator perf-low"></span> Below Average
    </li>
    <li><strong>Revenue %:</strong> Shows each source's contribution to total revenue</li>
  </ul>
</div>
`

const insightsHTML = `<div class="ai-insights-container">
  <div class="ai-insights-header">
    <h2>🤖 AI-Powered Marketing Insights</h2>
    <div class="ai-score">Performance Score: {{.OverallScore}}/100</div>
  </div>
  <div class="ai-summary"><p>{{.Summary}}</p></div>
  {{- with .KeyMetrics}}
  <div class="ai-metrics-grid">
    <div class="ai-metric-card"><div class="ai-metric-label">Best Channel</div><div class="ai-metric-value">{{.BestPerformingChannel}}</div></div>
    <div class="ai-metric-card"><div class="ai-metric-label">Total Revenue</div><div class="ai-metric-value">{{.TotalRevenue}}</div></div>
    <div class="ai-metric-card"><div class="ai-metric-label">Avg Order Value</div><div class="ai-metric-value">{{.AverageOrderValue}}</div></div>
    <div class="ai-metric-card"><div class="ai-metric-label">Conversion Rate</div><div class="ai-metric-value">{{.ConversionRate}}</div></div>
  </div>
  {{- end}}
  {{- if .Insights}}
  <h3>💡 Insights</h3>
  <div class="ai-insights">
    {{- range .Insights}}
    <div class="ai-insight-card impact-{{.Impact}}">
      <h4>{{.Title}}</h4>
      <p>{{.Description}}</p>
      {{- with .Metric}}<p class="ai-insight-metric">{{.}}</p>{{end}}
    </div>
    {{- end}}
  </div>
  {{- end}}
  {{- if .Recommendations}}
  <h3>📋 Recommendations</h3>
  <div class="ai-recommendations">
    {{- range .Recommendations}}
    <div class="ai-recommendation-card">
      <span class="recommendation-priority priority-{{.Priority}}">{{title .Priority}} Priority</span>
      <h4>{{.Title}}</h4>
      <p>{{.Description}}</p>
      <p class="ai-recommendation-meta"><strong>Expected Impact:</strong> {{.ExpectedImpact}}<br><strong>Effort:</strong> {{title .Effort}}</p>
    </div>
    {{- end}}
  </div>
  {{- end}}
  {{- if .Opportunities}}
  <h3>🚀 Opportunities</h3>
  <div class="ai-recommendations">
    {{- range .Opportunities}}
    <div class="ai-recommendation-card">
      <h4>{{.Channel}}</h4>
      <p><strong>Now:</strong> {{.CurrentPerformance}}</p>
      <p><strong>Potential:</strong> {{.Potential}}</p>
      <p><strong>Action:</strong> {{.Action}}</p>
    </div>
    {{- end}}
  </div>
  {{- end}}
  {{- if .Warnings}}
  <h3>⚠️ Issues to Address</h3>
  <div class="ai-recommendations">
    {{- range .Warnings}}
    <div class="ai-recommendation-card ai-warning severity-{{.Severity}}">
      <h4>{{.Issue}}</h4>
      <p>Affected Channel: <strong>{{.AffectedChannel}}</strong></p>
      <p>{{.Recommendation}}</p>
    </div>
    {{- end}}
  </div>
  {{- end}}
</div>
`
