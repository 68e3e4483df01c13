package zerion

import "time"

// Wire types for the JSON:API envelopes the wallet API responds with. Only
// the attributes the sync pipeline consumes are mapped.

type listLinks struct {
	Next string `json:"next"`
}

type relationships struct {
	Chain struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"chain"`
}

type quantity struct {
	Int      string  `json:"int"`
	Decimals int     `json:"decimals"`
	Float    float64 `json:"float"`
	Numeric  string  `json:"numeric"`
}

type changes struct {
	Percent1d *float64 `json:"percent_1d"`
}

type fungibleFlags struct {
	Verified bool `json:"verified"`
}

type implementation struct {
	ChainID  string  `json:"chain_id"`
	Address  *string `json:"address"`
	Decimals int     `json:"decimals"`
}

type fungibleInfo struct {
	Name            string           `json:"name"`
	Symbol          string           `json:"symbol"`
	Flags           fungibleFlags    `json:"flags"`
	Implementations []implementation `json:"implementations"`
}

type portfolioDocument struct {
	Data portfolioData `json:"data"`
}

type portfolioData struct {
	Attributes portfolioAttributes `json:"attributes"`
}

type portfolioAttributes struct {
	Total struct {
		Positions float64 `json:"positions"`
	} `json:"total"`
	Changes changes            `json:"changes"`
	ByType  map[string]float64 `json:"positions_distribution_by_type"`
	ByChain map[string]float64 `json:"positions_distribution_by_chain"`
}

type positionsDocument struct {
	Data []positionData `json:"data"`
}

type positionData struct {
	Type          string             `json:"type"`
	ID            string             `json:"id"`
	Attributes    positionAttributes `json:"attributes"`
	Relationships relationships      `json:"relationships"`
}

type positionFlags struct {
	Displayable bool `json:"displayable"`
	IsTrash     bool `json:"is_trash"`
}

type positionAttributes struct {
	Protocol     string        `json:"protocol"`
	PositionType string        `json:"position_type"`
	Quantity     quantity      `json:"quantity"`
	Value        *float64      `json:"value"`
	Price        *float64      `json:"price"`
	Changes      changes       `json:"changes"`
	FungibleInfo *fungibleInfo `json:"fungible_info"`
	Flags        positionFlags `json:"flags"`
}

type transactionsDocument struct {
	Links listLinks         `json:"links"`
	Data  []transactionData `json:"data"`
}

type transactionData struct {
	Type          string                `json:"type"`
	ID            string                `json:"id"`
	Attributes    transactionAttributes `json:"attributes"`
	Relationships relationships         `json:"relationships"`
}

type transactionAttributes struct {
	OperationType string       `json:"operation_type"`
	Hash          string       `json:"hash"`
	MinedAt       time.Time    `json:"mined_at"`
	SentFrom      string       `json:"sent_from"`
	SentTo        string       `json:"sent_to"`
	Status        string       `json:"status"`
	Fee           *txFee       `json:"fee"`
	Transfers     []txTransfer `json:"transfers"`
	Acts          []txAct      `json:"acts"`
	AppMetadata   *appMetadata `json:"application_metadata"`
}

type txFee struct {
	Value *float64 `json:"value"`
}

type txTransfer struct {
	FungibleInfo *fungibleInfo `json:"fungible_info"`
	NFTInfo      *nftInfo      `json:"nft_info"`
	Direction    string        `json:"direction"`
	Quantity     quantity      `json:"quantity"`
	Value        *float64      `json:"value"`
	Sender       string        `json:"sender"`
	Recipient    string        `json:"recipient"`
}

type txAct struct {
	Type string `json:"type"`
}

type appMetadata struct {
	Name string `json:"name"`
}

type nftPositionsDocument struct {
	Links listLinks         `json:"links"`
	Data  []nftPositionData `json:"data"`
}

type nftPositionData struct {
	Type          string                `json:"type"`
	Attributes    nftPositionAttributes `json:"attributes"`
	Relationships relationships         `json:"relationships"`
}

type nftPositionAttributes struct {
	Value          *float64        `json:"value"`
	NFTInfo        nftInfo         `json:"nft_info"`
	CollectionInfo *collectionInfo `json:"collection_info"`
}

type nftFlags struct {
	IsSpam    bool `json:"is_spam"`
	SpamScore *int `json:"spam_score"`
	IsNSFW    bool `json:"is_nsfw"`
}

type nftContent struct {
	Preview *mediaRef `json:"preview"`
	Detail  *mediaRef `json:"detail"`
}

type mediaRef struct {
	URL string `json:"url"`
}

type nftInfo struct {
	ContractAddress string      `json:"contract_address"`
	TokenID         string      `json:"token_id"`
	Name            string      `json:"name"`
	Interface       string      `json:"interface"`
	Content         *nftContent `json:"content"`
	Flags           nftFlags    `json:"flags"`
}

type collectionInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	FloorPrice  *float64 `json:"floor_price"`
}
