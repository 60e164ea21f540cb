package core

import "testing"

func pendingFixture() []PendingApproval {
	return []PendingApproval{
		{SourceSystem: "OBBRN", Module: "CASA", TxnID: "1", Branch: "001", Status: "Pending"},
		{SourceSystem: "FCUBS", Module: "LOANS", TxnID: "2", Branch: "000", Status: "Pending"},
		{SourceSystem: "FCUBS", Module: "CASA", TxnID: "3", Branch: "001", Status: "Rejected"},
	}
}

func TestFilterPending(t *testing.T) {
	cases := []struct {
		name   string
		filter PendingFilter
		want   []string
	}{
		{name: "empty filter", filter: PendingFilter{}, want: []string{"1", "2", "3"}},
		{name: "all markers", filter: PendingFilter{System: "(All)", Module: "(All)", Branch: "(All)", Status: "(All)"}, want: []string{"1", "2", "3"}},
		{name: "system case insensitive", filter: PendingFilter{System: "fcubs"}, want: []string{"2", "3"}},
		{name: "module and branch", filter: PendingFilter{Module: "casa", Branch: "001"}, want: []string{"1", "3"}},
		{name: "pending status is wildcard", filter: PendingFilter{Status: "(Pending)"}, want: []string{"1", "2", "3"}},
		{name: "pending marker with system", filter: PendingFilter{System: "OBBRN", Status: FilterStatusPending}, want: []string{"1"}},
		{name: "explicit status", filter: PendingFilter{Status: "rejected"}, want: []string{"3"}},
		{name: "no match", filter: PendingFilter{Branch: "999"}, want: []string{}},
	}
	for _, tc := range cases {
		got := FilterPending(pendingFixture(), tc.filter)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: expected %d items, got %d", tc.name, len(tc.want), len(got))
		}
		for index, item := range got {
			if item.TxnID != tc.want[index] {
				t.Fatalf("%s: expected txn %s at %d, got %s", tc.name, tc.want[index], index, item.TxnID)
			}
		}
	}
}
