// Package geoloqi provides a Go client for the Geoloqi location API.
//
// The client authenticates either as a user, with an access token, or as
// an application, with an API key and secret exchanged for an access token
// through the OAuth2 client-credentials grant. When the API reports the
// token as expired the session renews it and retries the request once.
//
// Basic usage:
//
//	client, err := geoloqi.New(ctx, geoloqi.WithCredentials("key", "secret"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	layers, err := client.Get(ctx, "layer/list", nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if layers.HasError() {
//	    log.Printf("API error: %s", layers.ErrorCode())
//	}
//
// Credentials not passed as options are read from GEOLOQI_API_KEY,
// GEOLOQI_API_SECRET and GEOLOQI_ACCESS_TOKEN, then from ~/.geoloqi and
// /etc/geoloqi/geoloqi.cfg. See package credentials.
//
// API error payloads such as {"error": "not_found"} are returned as a
// Response, not as an error. Use WithStrictErrors to get an *APIError
// instead.
package geoloqi
