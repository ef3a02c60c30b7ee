package email

import "html/template"

const layoutHead = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #1b5e20; padding-bottom: 10px; margin-bottom: 20px; }
        .facts td { padding: 4px 12px 4px 0; }
        .warning { background: #fdecea; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header"><h1>GovAI Grievance Cell</h1></div>
    <p>Dear {{.RecipientName}},</p>`

const layoutFacts = `
    <table class="facts">
        <tr><td>Grievance</td><td>{{.GrievanceID}}</td></tr>
        <tr><td>Title</td><td>{{.Title}}</td></tr>
        <tr><td>Location</td><td>{{.Location}}</td></tr>
        <tr><td>Priority</td><td>{{.Priority}}</td></tr>
        <tr><td>Resolve by</td><td>{{.Deadline}}</td></tr>
    </table>
    <div class="footer"><p>This is an automated message. Please update the grievance timeline from the officer dashboard.</p></div>
</body>
</html>`

var assignmentTemplate = template.Must(template.New("assignment").Parse(layoutHead + `
    <p>A new grievance has been assigned to you. Please visit the location and record your progress.</p>` + layoutFacts))

var reassignmentTemplate = template.Must(template.New("reassignment").Parse(layoutHead + `
    <p>The following grievance has been reassigned to you.</p>
    <p><strong>Reason:</strong> {{.Reason}}</p>
    <p>The resolution deadline was fixed at the original assignment and has not changed.</p>` + layoutFacts))

var breachTemplate = template.Must(template.New("sla_breach").Parse(layoutHead + `
    <div class="warning"><strong>The resolution deadline for this grievance has passed.</strong></div>` + layoutFacts))
