package api

import (
	"context"
	"net/http"
)

// Delete removes all data associated with a customer ID.
func (s UserDataService) Delete(ctx context.Context, customerID string, headers http.Header) error {
	_, err := Execute(ctx, s.Client, DeleteUserDataRequest(customerID, headers), NoContent())
	return err
}

// DeleteUserDataRequest builds the request Delete sends.
func DeleteUserDataRequest(customerID string, headers http.Header) Request {
	return Request{
		Method: http.MethodDelete,
		Path:   "/v3/user_data",
		Query:  []QueryParam{{Key: "customer_id", Value: customerID}},
		Header: operationHeader(headers, "application/json"),
	}
}
