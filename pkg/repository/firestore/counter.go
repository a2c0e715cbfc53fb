package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// nextID increments the named counter document in a transaction and returns
// the new value. The first ID of every counter is 1.
func nextID(ctx context.Context, client *firestore.Client, cols *collections, counter string) (int64, error) {
	counterRef := client.Collection(cols.name(collectionCounters)).Doc(counter)

	var id int64
	err := client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(counterRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				id = 1
				return tx.Set(counterRef, map[string]interface{}{
					"value": id,
				})
			}
			return goerr.Wrap(err, "failed to get counter")
		}

		currentValue, err := doc.DataAt("value")
		if err != nil {
			return goerr.Wrap(err, "failed to get counter value")
		}
		current, ok := currentValue.(int64)
		if !ok {
			return goerr.New("counter value is not an integer", goerr.V("counter", counter))
		}

		id = current + 1
		return tx.Update(counterRef, []firestore.Update{
			{Path: "value", Value: id},
		})
	})

	if err != nil {
		return 0, goerr.Wrap(err, "failed to get next ID", goerr.V("counter", counter))
	}

	return id, nil
}
