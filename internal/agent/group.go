package agent

import (
	"sort"

	"github.com/dhruv457457/AutoPay/pkg/types"
)

// Group is the set of due subscriptions sharing one owner and therefore one
// subscriber smart account. The whole group redeems against one delegation
// in one submission.
type Group struct {
	Owner         string
	Subscriber    string
	Subscriptions []types.Subscription
}

// GroupByOwner partitions due subscriptions by their owner EOA. Every member
// of a group must name the same subscriber account; an owner whose
// subscriptions point at different subscribers is a data-integrity fault and
// is returned as a rejected group rather than silently merged or split.
// Groups come back in deterministic owner order.
func GroupByOwner(due []types.Subscription) ([]Group, []*types.IntegrityError) {
	byOwner := make(map[string][]types.Subscription)
	for _, sub := range due {
		owner := types.NormalizeAddress(sub.Owner)
		byOwner[owner] = append(byOwner[owner], sub)
	}

	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var (
		groups   []Group
		rejected []*types.IntegrityError
	)
	for _, owner := range owners {
		subs := byOwner[owner]
		subscriber := types.NormalizeAddress(subs[0].Subscriber)

		distinct := map[string]struct{}{subscriber: {}}
		for _, sub := range subs[1:] {
			distinct[types.NormalizeAddress(sub.Subscriber)] = struct{}{}
		}
		if len(distinct) > 1 {
			subscribers := make([]string, 0, len(distinct))
			for s := range distinct {
				subscribers = append(subscribers, s)
			}
			sort.Strings(subscribers)
			rejected = append(rejected, &types.IntegrityError{Owner: owner, Subscribers: subscribers})
			continue
		}

		groups = append(groups, Group{Owner: owner, Subscriber: subscriber, Subscriptions: subs})
	}
	return groups, rejected
}
