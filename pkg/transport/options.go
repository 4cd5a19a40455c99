package transport

// Option identifies a configurable setting on a Handle.
// Options are applied individually via Handle.SetOption and staged until
// the next Perform; the handle assembles the actual request from them.
type Option int

const (
	// OptionURL is the full request URL (string).
	OptionURL Option = iota + 1

	// OptionHTTPGet selects the GET method (bool). Setting it true clears
	// OptionPost and OptionCustomRequest.
	OptionHTTPGet

	// OptionPost selects the POST method (bool). Setting it true clears
	// OptionHTTPGet and OptionCustomRequest.
	OptionPost

	// OptionCustomRequest selects an explicit verb such as "PUT" or
	// "DELETE" (string). Setting it clears OptionHTTPGet and OptionPost.
	OptionCustomRequest

	// OptionAcceptEncoding is the Accept-Encoding request value (string).
	// An empty string restores the transport default.
	OptionAcceptEncoding

	// OptionTCPKeepAlive toggles connection keep-alive (bool).
	OptionTCPKeepAlive

	// OptionTimeoutMS is the whole-request timeout in milliseconds (int64).
	// Zero disables the timeout.
	OptionTimeoutMS

	// OptionHTTPHeader is the request header list (*HeaderList). A nil
	// list clears all custom headers.
	OptionHTTPHeader

	// OptionPostFields is the url-encoded request body (string).
	OptionPostFields

	// OptionSSLVerifyPeer toggles certificate chain verification (bool).
	OptionSSLVerifyPeer

	// OptionSSLVerifyHost toggles hostname verification (int; 0 disables,
	// 2 enables, matching the conventional verify-host levels).
	OptionSSLVerifyHost

	// OptionCAInfo is a path to a PEM certificate bundle file (string).
	OptionCAInfo

	// OptionCAPath is a directory of PEM certificate files (string).
	OptionCAPath

	// OptionWriteSink receives the response body (io.Writer).
	OptionWriteSink

	// OptionHeaderSink receives the raw response header text (io.Writer).
	// A nil value disables header capture.
	OptionHeaderSink
)

var optionNames = map[Option]string{
	OptionURL:            "URL",
	OptionHTTPGet:        "HTTPGET",
	OptionPost:           "POST",
	OptionCustomRequest:  "CUSTOMREQUEST",
	OptionAcceptEncoding: "ACCEPT_ENCODING",
	OptionTCPKeepAlive:   "TCP_KEEPALIVE",
	OptionTimeoutMS:      "TIMEOUT_MS",
	OptionHTTPHeader:     "HTTPHEADER",
	OptionPostFields:     "POSTFIELDS",
	OptionSSLVerifyPeer:  "SSL_VERIFYPEER",
	OptionSSLVerifyHost:  "SSL_VERIFYHOST",
	OptionCAInfo:         "CAINFO",
	OptionCAPath:         "CAPATH",
	OptionWriteSink:      "WRITESINK",
	OptionHeaderSink:     "HEADERSINK",
}

// String returns the diagnostic name of the option, or "UNKNOWN" for
// unrecognized values.
func (o Option) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}
