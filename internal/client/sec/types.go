package sec

import "encoding/xml"

// submissions is the subset of data.sec.gov/submissions/CIK##########.json we read.
type submissions struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

type directoryIndex struct {
	Directory struct {
		Name string `json:"name"`
		Item []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"item"`
	} `json:"directory"`
}

// Filing is one Form 4 accession listed for an issuer.
type Filing struct {
	Symbol          string
	CIK             string
	AccessionNumber string
	FilingDate      string
	PrimaryDocument string
}

type valueString struct {
	Value string `xml:"value"`
}

type ownershipDocument struct {
	XMLName xml.Name `xml:"ownershipDocument"`
	Issuer  struct {
		CIK    string `xml:"issuerCik"`
		Name   string `xml:"issuerName"`
		Symbol string `xml:"issuerTradingSymbol"`
	} `xml:"issuer"`
	Owners []struct {
		ID struct {
			CIK  string `xml:"rptOwnerCik"`
			Name string `xml:"rptOwnerName"`
		} `xml:"reportingOwnerId"`
		Relationship struct {
			IsDirector        string `xml:"isDirector"`
			IsOfficer         string `xml:"isOfficer"`
			IsTenPercentOwner string `xml:"isTenPercentOwner"`
			IsOther           string `xml:"isOther"`
			OfficerTitle      string `xml:"officerTitle"`
			OtherText         string `xml:"otherText"`
		} `xml:"reportingOwnerRelationship"`
	} `xml:"reportingOwner"`
	Transactions []struct {
		Date   valueString `xml:"transactionDate"`
		Coding struct {
			Code string `xml:"transactionCode"`
		} `xml:"transactionCoding"`
		Amounts struct {
			Shares valueString `xml:"transactionShares"`
			Price  valueString `xml:"transactionPricePerShare"`
		} `xml:"transactionAmounts"`
		Post struct {
			SharesOwned valueString `xml:"sharesOwnedFollowingTransaction"`
		} `xml:"postTransactionAmounts"`
		Nature struct {
			DirectOrIndirect valueString `xml:"directOrIndirectOwnership"`
		} `xml:"ownershipNature"`
	} `xml:"nonDerivativeTable>nonDerivativeTransaction"`
}
