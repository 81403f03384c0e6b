package responder

// HelloBody is the body returned by the HTTP variant.
const HelloBody = "Hello World"

// RawBody is the HTML body returned by the raw variant.
const RawBody = `<!DOCTYPE html>
<html>
<head><title>Spoticord</title></head>
<body><h1>Spoticord is running</h1></body>
</html>
`

// RawResponse is the complete response written on every raw connection.
// It carries no Content-Length; closing the connection delimits the body.
var RawResponse = []byte("HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/html; charset=UTF-8\r\n" +
	"\r\n" +
	RawBody)
